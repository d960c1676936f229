// Package config loads the ubxmon YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ubxmon/internal/pipeline"
)

type Config struct {
	Serial  SerialConfig      `yaml:"serial"`
	HTTP    HTTPConfig        `yaml:"http"`
	MQTT    MQTTConfig        `yaml:"mqtt"`
	Display pipeline.Settings `yaml:"display"`
}

type SerialConfig struct {
	// Device may be empty to auto-detect /dev/ttyACM* and /dev/ttyUSB*.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// PollOnStart controls the configuration poll sweep after opening
	// the port.
	PollOnStart bool `yaml:"poll_on_start"`
	// ReopenDelay is the wait before reopening the port after a read
	// failure.
	ReopenDelay time.Duration `yaml:"reopen_delay"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Enable      bool   `yaml:"enable"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills defaults in place and rejects inconsistent
// settings. Safe to call on an already-defaulted config.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 9600
	}
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be > 0")
	}
	if cfg.Serial.ReopenDelay < 0 {
		return fmt.Errorf("serial.reopen_delay must be >= 0")
	}
	if cfg.Serial.ReopenDelay == 0 {
		cfg.Serial.ReopenDelay = 2 * time.Second
	}

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8093"
	}

	if cfg.MQTT.Enable && strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "ubxmon"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "ubxmon"
	}

	return nil
}
