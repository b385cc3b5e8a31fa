package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncer_config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "mqtt_broker: tcp://broker:1883\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("broker = %q", cfg.MQTTBroker)
	}
	if cfg.AccelCapacity != 100 {
		t.Errorf("accel_capacity default = %d, want 100", cfg.AccelCapacity)
	}
	if !cfg.StaleDetectionEnabled {
		t.Error("stale detection not enabled by default")
	}
	if cfg.StaleOffsetNanos != 500_000_000 {
		t.Errorf("stale_offset_nanos default = %d", cfg.StaleOffsetNanos)
	}
	if cfg.TopicSynced != "inertial/synced" {
		t.Errorf("topic_synced default = %q", cfg.TopicSynced)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"gyro_capacity: 32",
		"stop_when_filled_buffer: false",
		"stale_offset_nanos: 750000000",
		"uncalibrated: true",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GyroCapacity != 32 {
		t.Errorf("gyro_capacity = %d", cfg.GyroCapacity)
	}
	if cfg.StopWhenFilledBuffer {
		t.Error("stop_when_filled_buffer override ignored")
	}
	if cfg.StaleOffsetNanos != 750_000_000 {
		t.Errorf("stale_offset_nanos = %d", cfg.StaleOffsetNanos)
	}
	if !cfg.Uncalibrated {
		t.Error("uncalibrated override ignored")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"zero capacity", "mag_capacity: 0\n"},
		{"negative capacity", "accel_capacity: -3\n"},
		{"zero stale offset", "stale_offset_nanos: 0\n"},
		{"empty broker", "mqtt_broker: \"\"\n"},
		{"bad yaml", "accel_capacity: [\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.body)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
