// Package config loads berrywatch settings from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete berrywatch configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Models   ModelsConfig   `yaml:"models"`
	Store    StoreConfig    `yaml:"store"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
	Actuator ActuatorConfig `yaml:"actuator"`
}

// CameraConfig selects the frame source.
type CameraConfig struct {
	Device int    `yaml:"device" validate:"gte=0"`
	Source string `yaml:"source"` // video file or stream URL; overrides Device when set
	Width  int    `yaml:"width" validate:"gte=0"`
	Height int    `yaml:"height" validate:"gte=0"`
	FPS    int    `yaml:"fps" validate:"gte=0"`
}

// ModelsConfig holds the two detector models.
type ModelsConfig struct {
	Disease ModelConfig `yaml:"disease"`
	Healthy ModelConfig `yaml:"healthy"`
}

// ModelConfig describes one ONNX detection model and its class table.
type ModelConfig struct {
	ModelPath  string  `yaml:"model_path" validate:"required"`
	LabelsPath string  `yaml:"labels_path" validate:"required"`
	Confidence float64 `yaml:"confidence" validate:"gt=0,lte=1"`
	InputSize  int     `yaml:"input_size" validate:"gte=32"`
}

// StoreConfig points at the SQLite detection log.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// MQTTConfig configures the telemetry channel to the actuator.
type MQTTConfig struct {
	Broker         string        `yaml:"broker" validate:"required"`
	Topic          string        `yaml:"topic" validate:"required"`
	ClientIDPrefix string        `yaml:"client_id_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	PublishTimeout time.Duration `yaml:"publish_timeout" validate:"gte=0"` // 0 waits for the transport
}

// HTTPConfig configures the live view / collector server. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// UIConfig controls the operator surfaces.
type UIConfig struct {
	Window bool   `yaml:"window"`
	Tray   bool   `yaml:"tray"`
	Title  string `yaml:"title"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Dir   string `yaml:"dir"`
}

// ActuatorConfig configures the actuator-side reporter process.
type ActuatorConfig struct {
	CollectorURL string        `yaml:"collector_url" validate:"required,url"`
	Interval     time.Duration `yaml:"interval" validate:"gt=0"`
	LinkCheck    time.Duration `yaml:"link_check" validate:"gt=0"`
	ProbeAddr    string        `yaml:"probe_addr"` // host:port dialled to decide the link is up
	Subscribe    bool          `yaml:"subscribe"`
	Demo         DemoReport    `yaml:"demo"`
}

// DemoReport is the fixed detection reported when no telemetry has been received.
type DemoReport struct {
	Category   string `yaml:"category" validate:"oneof=enfermedad sana"`
	Label      string `yaml:"label" validate:"required"`
	Confidence string `yaml:"confidence" validate:"required,numeric"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{Device: 0, Width: 640, Height: 480, FPS: 15},
		Models: ModelsConfig{
			Disease: ModelConfig{ModelPath: "best.onnx", LabelsPath: "best.yaml", Confidence: 0.25, InputSize: 640},
			Healthy: ModelConfig{ModelPath: "sano.onnx", LabelsPath: "sano.yaml", Confidence: 0.20, InputSize: 640},
		},
		Store: StoreConfig{Path: "detecciones_fresa.db"},
		MQTT: MQTTConfig{
			Broker:         "tcp://127.0.0.1:1883",
			Topic:          "robot/fresa",
			ClientIDPrefix: "berrywatch",
			ConnectTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		UI:   UIConfig{Window: true, Title: "Detector Fresas - Sanas y Enfermedades"},
		Log:  LogConfig{Level: "info", Dir: "logs"},
		Actuator: ActuatorConfig{
			CollectorURL: "http://172.20.10.2:5000/nuevo",
			Interval:     5 * time.Second,
			LinkCheck:    500 * time.Millisecond,
			Demo:         DemoReport{Category: "sana", Label: "fresa_demo", Confidence: "0.88"},
		},
	}
}

// Load reads the optional .env file, the optional YAML file at path,
// applies BERRYWATCH_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Camera.Device = getEnvAsInt("BERRYWATCH_CAMERA_DEVICE", cfg.Camera.Device)
	cfg.Camera.Source = getEnv("BERRYWATCH_CAMERA_SOURCE", cfg.Camera.Source)
	cfg.Models.Disease.ModelPath = getEnv("BERRYWATCH_DISEASE_MODEL", cfg.Models.Disease.ModelPath)
	cfg.Models.Disease.LabelsPath = getEnv("BERRYWATCH_DISEASE_LABELS", cfg.Models.Disease.LabelsPath)
	cfg.Models.Healthy.ModelPath = getEnv("BERRYWATCH_HEALTHY_MODEL", cfg.Models.Healthy.ModelPath)
	cfg.Models.Healthy.LabelsPath = getEnv("BERRYWATCH_HEALTHY_LABELS", cfg.Models.Healthy.LabelsPath)
	cfg.Store.Path = getEnv("BERRYWATCH_DB", cfg.Store.Path)
	cfg.MQTT.Broker = getEnv("BERRYWATCH_MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.Topic = getEnv("BERRYWATCH_MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.HTTP.Addr = getEnv("BERRYWATCH_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.UI.Window = getEnvAsBool("BERRYWATCH_WINDOW", cfg.UI.Window)
	cfg.UI.Tray = getEnvAsBool("BERRYWATCH_TRAY", cfg.UI.Tray)
	cfg.Log.Level = getEnv("BERRYWATCH_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Dir = getEnv("BERRYWATCH_LOG_DIR", cfg.Log.Dir)
	cfg.Actuator.CollectorURL = getEnv("BERRYWATCH_COLLECTOR_URL", cfg.Actuator.CollectorURL)
	cfg.Actuator.ProbeAddr = getEnv("BERRYWATCH_PROBE_ADDR", cfg.Actuator.ProbeAddr)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
