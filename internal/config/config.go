package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string `yaml:"mqtt_broker"`
	MQTTClientIDProducer string `yaml:"mqtt_client_id_producer"`
	MQTTClientIDConsole  string `yaml:"mqtt_client_id_console"`
	MQTTClientIDWeb      string `yaml:"mqtt_client_id_web"`
	MQTTClientIDDisplay  string `yaml:"mqtt_client_id_display"`

	// Topics
	TopicSynced string `yaml:"topic_synced"`
	TopicStale  string `yaml:"topic_stale"`

	// Synchronizer buffers
	AccelCapacity    int `yaml:"accel_capacity"`
	GravityCapacity  int `yaml:"gravity_capacity"`
	GyroCapacity     int `yaml:"gyro_capacity"`
	AttitudeCapacity int `yaml:"attitude_capacity"`
	MagCapacity      int `yaml:"mag_capacity"`

	// Synchronizer behavior
	StopWhenFilledBuffer  bool  `yaml:"stop_when_filled_buffer"`
	StaleOffsetNanos      int64 `yaml:"stale_offset_nanos"`
	StaleDetectionEnabled bool  `yaml:"stale_detection_enabled"`
	Uncalibrated          bool  `yaml:"uncalibrated"`
	StartOffsetEnabled    bool  `yaml:"start_offset_enabled"`

	// IMU hardware
	IMUSPIDevice        string `yaml:"imu_spi_device"`
	IMUCSPin            string `yaml:"imu_cs_pin"`
	IMUSampleIntervalMS int    `yaml:"imu_sample_interval_ms"`

	// Heading (NMEA attitude source)
	HeadingSerialPort string `yaml:"heading_serial_port"`
	HeadingBaudRate   uint   `yaml:"heading_baud_rate"`

	// Simulation
	SimRateHz float64 `yaml:"sim_rate_hz"`

	// Web server
	WebListenAddr string `yaml:"web_listen_addr"`

	// Display
	DisplayI2CBus           string `yaml:"display_i2c_bus"`
	DisplayI2CAddr          uint16 `yaml:"display_i2c_addr"`
	DisplayUpdateIntervalMS int    `yaml:"display_update_interval_ms"`
}

// defaults returns a Config prefilled with the values a bare file should
// inherit.
func defaults() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "syncer-producer",
		MQTTClientIDConsole:  "syncer-console",
		MQTTClientIDWeb:      "syncer-web",
		MQTTClientIDDisplay:  "syncer-display",

		TopicSynced: "inertial/synced",
		TopicStale:  "inertial/stale",

		AccelCapacity:    100,
		GravityCapacity:  100,
		GyroCapacity:     100,
		AttitudeCapacity: 100,
		MagCapacity:      100,

		StopWhenFilledBuffer:  true,
		StaleOffsetNanos:      500_000_000,
		StaleDetectionEnabled: true,
		StartOffsetEnabled:    true,

		IMUSPIDevice:        "/dev/spidev6.0",
		IMUCSPin:            "18",
		IMUSampleIntervalMS: 10,

		HeadingSerialPort: "/dev/serial0",
		HeadingBaudRate:   9600,

		SimRateHz: 50,

		WebListenAddr: ":8080",

		DisplayI2CAddr:          0x3C,
		DisplayUpdateIntervalMS: 250,
	}
}

// Package-level unexported variables for the singleton: external code must
// use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads and validates the YAML configuration file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	caps := map[string]int{
		"accel_capacity":    c.AccelCapacity,
		"gravity_capacity":  c.GravityCapacity,
		"gyro_capacity":     c.GyroCapacity,
		"attitude_capacity": c.AttitudeCapacity,
		"mag_capacity":      c.MagCapacity,
	}
	for name, v := range caps {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, v)
		}
	}
	if c.StaleOffsetNanos <= 0 {
		return fmt.Errorf("config: stale_offset_nanos must be positive, got %d", c.StaleOffsetNanos)
	}
	if c.IMUSampleIntervalMS <= 0 {
		return fmt.Errorf("config: imu_sample_interval_ms must be positive, got %d", c.IMUSampleIntervalMS)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("config: mqtt_broker must not be empty")
	}
	return nil
}

// InitGlobal loads the configuration once and installs it as the global
// instance. Subsequent calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		var cfg *Config
		cfg, err = Load(configPath)
		if err != nil {
			return
		}
		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})
	return err
}

// Get returns the global configuration. Panics if InitGlobal was not
// called first.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	if globalConfig == nil {
		panic("config: Get called before InitGlobal")
	}
	return globalConfig
}
