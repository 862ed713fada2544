package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/berrywatch/internal/app"
	"github.com/ayusman/berrywatch/internal/capture"
	"github.com/ayusman/berrywatch/internal/config"
	"github.com/ayusman/berrywatch/internal/detector"
	"github.com/ayusman/berrywatch/internal/inspect"
	"github.com/ayusman/berrywatch/internal/logger"
	"github.com/ayusman/berrywatch/internal/render"
	"github.com/ayusman/berrywatch/internal/server"
	"github.com/ayusman/berrywatch/internal/store"
	"github.com/ayusman/berrywatch/internal/telemetry"
	"github.com/ayusman/berrywatch/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	fmt.Println("Berrywatch - Strawberry Health Inspection")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Name: "berrywatch"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	disease := loadModel(log, "disease", cfg.Models.Disease)
	defer disease.Close()
	healthy := loadModel(log, "healthy", cfg.Models.Healthy)
	defer healthy.Close()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize store")
	}
	defer st.Close()

	mqttClient := telemetry.NewMQTTClient(telemetry.MQTTConfig{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientIDPrefix + "-" + uuid.NewString()[:8],
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	}, log)
	if err := mqttClient.Connect(); err != nil {
		log.WithError(err).Fatal("Failed to connect to MQTT broker")
	}
	defer mqttClient.Disconnect()

	camera := capture.NewCamera(capture.Config{
		Device: cfg.Camera.Device,
		Source: cfg.Camera.Source,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	if err := camera.Open(); err != nil {
		log.WithError(err).Fatal("Failed to open camera")
	}

	var display render.Display = render.NewHeadless()
	if cfg.UI.Window {
		display = render.NewWindow(cfg.UI.Title)
	}

	hub := server.NewHub()
	reporter := inspect.NewReporter(st.Events())
	application := app.New(app.Config{
		Camera: camera,
		Aggregator: inspect.NewAggregator(disease, healthy, inspect.Thresholds{
			Disease: cfg.Models.Disease.Confidence,
			Healthy: cfg.Models.Healthy.Confidence,
		}),
		Modes:       inspect.NewModeController(),
		Coordinator: inspect.NewCoordinator(mqttClient, st.Events(), cfg.MQTT.Topic, log),
		Reporter:    reporter,
		Display:     display,
		Sink:        hub,
		Log:         log,
	})
	defer func() {
		if err := application.Close(); err != nil {
			log.WithError(err).Warn("Failed to release camera or display")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tr *tray.Tray
	if cfg.UI.Tray {
		tr = tray.New("Berrywatch", application.Submit)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the loop ending (quit key, end of stream) stops everything else
		defer stop()
		return application.Run(gctx)
	})

	if cfg.HTTP.Addr != "" {
		srv := server.New(server.Config{
			Store:     st,
			Reporter:  reporter,
			Hub:       hub,
			Commands:  application,
			Telemetry: mqttClient.Stats,
			Log:       log,
		})
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.HTTP.Addr)
		})
	}

	if tr != nil {
		g.Go(func() error {
			followMode(gctx, hub, tr)
			return nil
		})
		go func() {
			<-gctx.Done()
			tr.Quit()
		}()
		// systray needs the main goroutine
		tr.Run()
		stop()
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Berrywatch stopped with error")
		return
	}
	log.Info("Berrywatch stopped")
}

func loadModel(log *logrus.Logger, name string, mc config.ModelConfig) *detector.YOLODetector {
	d, err := detector.NewYOLODetector(detector.YOLOConfig{
		ModelPath:  mc.ModelPath,
		LabelsPath: mc.LabelsPath,
		InputSize:  mc.InputSize,
	})
	if err != nil {
		log.WithField("model", name).WithError(err).Fatal("Failed to load detection model")
	}
	log.WithFields(logrus.Fields{"model": name, "path": mc.ModelPath}).Info("Detection model loaded")
	return d
}

// followMode mirrors the loop's mode into the tray menu.
func followMode(ctx context.Context, hub *server.Hub, tr *tray.Tray) {
	updates, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if snap.Mode != tr.Mode() {
				tr.SetMode(snap.Mode)
			}
		}
	}
}
