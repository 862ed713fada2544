package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/berrywatch/internal/actuator"
	"github.com/ayusman/berrywatch/internal/config"
	"github.com/ayusman/berrywatch/internal/logger"
	"github.com/ayusman/berrywatch/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir, Name: "berrynode"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	conf, err := strconv.ParseFloat(cfg.Actuator.Demo.Confidence, 64)
	if err != nil {
		log.WithError(err).Fatal("Invalid demo confidence")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := actuator.NewReporter(actuator.Config{
		CollectorURL: cfg.Actuator.CollectorURL,
		Interval:     cfg.Actuator.Interval,
		LinkCheck:    cfg.Actuator.LinkCheck,
		Fallback: actuator.Reading{
			Category:   cfg.Actuator.Demo.Category,
			Label:      cfg.Actuator.Demo.Label,
			Confidence: conf,
		},
	}, actuator.TCPProbe{Addr: cfg.Actuator.ProbeAddr, Timeout: time.Second}, log)

	if cfg.Actuator.Subscribe {
		client := telemetry.NewMQTTClient(telemetry.MQTTConfig{
			Broker:         cfg.MQTT.Broker,
			ClientID:       "berrynode-" + uuid.NewString()[:8],
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
		}, log)
		if err := client.Connect(); err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer client.Disconnect()

		if err := client.Subscribe(cfg.MQTT.Topic, reporter.Observe); err != nil {
			log.WithError(err).Fatal("Failed to subscribe to telemetry")
		}
	}

	if err := reporter.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Reporter stopped with error")
		return
	}

	stats := reporter.Stats()
	log.WithField("sent", stats.Sent).WithField("failed", stats.Failed).Info("Berrynode stopped")
}
