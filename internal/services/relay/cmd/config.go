package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultCameraURL = "http://100.115.91.111:8889/rovercam"

type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	GPSURL    string `yaml:"gps_url"` // optional second broker that owns the GPS topics
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"` // prefix, a random suffix is appended
	QoS       int    `yaml:"qos"`
	RetryMs   int    `yaml:"retry_ms"`
}

type PublishConfig struct {
	TimeoutMs    int `yaml:"timeout_ms"`
	BreakerFails int `yaml:"breaker_fails"`
	BreakerOpen  int `yaml:"breaker_open_ms"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	MQTT        MQTTConfig    `yaml:"mqtt"`
	Publish     PublishConfig `yaml:"publish"`
	Log         LogConfig     `yaml:"log"`
	HTTPPort    int           `yaml:"http_port"`
	GRPCPort    int           `yaml:"grpc_port"`
	Camera1URL  string        `yaml:"camera1_url"`
	Camera2URL  string        `yaml:"camera2_url"`
	ClientQueue int           `yaml:"client_queue"`
}

func defaults() Config {
	return Config{
		MQTT: MQTTConfig{
			BrokerURL: "mqtt://localhost:1883",
			ClientID:  "rover-relay",
			QoS:       0,
			RetryMs:   3000,
		},
		Publish: PublishConfig{
			TimeoutMs:    2000,
			BreakerFails: 5,
			BreakerOpen:  10000,
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		HTTPPort:    3000,
		GRPCPort:    9090,
		Camera1URL:  defaultCameraURL,
		Camera2URL:  defaultCameraURL,
		ClientQueue: 256,
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// loadConfig applies defaults, then the YAML file named by RELAY_CONFIG (if
// any), then environment overrides.
func loadConfig() (Config, error) {
	cfg := defaults()
	if path := envStr("RELAY_CONFIG", ""); path != "" {
		if err := readFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.MQTT.BrokerURL = envStr("MQTT_BROKER_URL", cfg.MQTT.BrokerURL)
	cfg.MQTT.GPSURL = envStr("MQTT_GPS_URL", cfg.MQTT.GPSURL)
	cfg.MQTT.User = envStr("MQTT_USER", cfg.MQTT.User)
	cfg.MQTT.Password = envStr("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.ClientID = envStr("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.QoS = envInt("MQTT_QOS", cfg.MQTT.QoS)
	cfg.MQTT.RetryMs = envInt("MQTT_RETRY_MS", cfg.MQTT.RetryMs)

	cfg.Publish.TimeoutMs = envInt("PUBLISH_TIMEOUT_MS", cfg.Publish.TimeoutMs)
	cfg.Publish.BreakerFails = envInt("CB_FAILS", cfg.Publish.BreakerFails)
	cfg.Publish.BreakerOpen = envInt("CB_OPEN_MS", cfg.Publish.BreakerOpen)

	cfg.Log.File = envStr("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = envInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = envInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
	cfg.Log.MaxAgeDays = envInt("LOG_MAX_AGE_DAYS", cfg.Log.MaxAgeDays)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.Camera1URL = envStr("RASPBERRY_PI_WEBRTC_URL", cfg.Camera1URL)
	cfg.Camera2URL = envStr("RASPBERRY_PI_WEBRTC_URL_2", cfg.Camera2URL)
	cfg.ClientQueue = envInt("CLIENT_QUEUE", cfg.ClientQueue)
}

func (c Config) validate() error {
	var errs []error
	if c.MQTT.BrokerURL == "" {
		errs = append(errs, errors.New("mqtt broker url is empty"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos %d out of range", c.MQTT.QoS))
	}
	if c.MQTT.RetryMs <= 0 {
		errs = append(errs, fmt.Errorf("mqtt retry %dms must be positive", c.MQTT.RetryMs))
	}
	for name, p := range map[string]int{"http": c.HTTPPort, "grpc": c.GRPCPort} {
		if p <= 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("%s port %d out of range", name, p))
		}
	}
	if c.HTTPPort == c.GRPCPort {
		errs = append(errs, fmt.Errorf("http and grpc share port %d", c.HTTPPort))
	}
	if c.ClientQueue <= 0 {
		errs = append(errs, fmt.Errorf("client queue %d must be positive", c.ClientQueue))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) retryInterval() time.Duration {
	return time.Duration(c.MQTT.RetryMs) * time.Millisecond
}
