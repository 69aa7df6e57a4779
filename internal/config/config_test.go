package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Reminders.MinInterval != 2*time.Minute || cfg.Reminders.MaxInterval != 15*time.Minute {
		t.Fatalf("reminder intervals: %s %s", cfg.Reminders.MinInterval, cfg.Reminders.MaxInterval)
	}
	if cfg.Reminders.EscalationThreshold != 3 {
		t.Fatalf("escalation threshold: %d", cfg.Reminders.EscalationThreshold)
	}
	if cfg.Scoring.MinConfidence != 0.6 || cfg.Scoring.HistoryLimit != 50 {
		t.Fatalf("scoring defaults: %+v", cfg.Scoring)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: debug
reminders:
  min_interval: 60000000000
  max_interval: 600000000000
  quiet_hours:
    enabled: true
    start_hour: 22
    end_hour: 6
ingest:
  rest:
    enabled: true
    addr: ":8080"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	if cfg.Reminders.MinInterval != time.Minute || cfg.Reminders.MaxInterval != 10*time.Minute {
		t.Fatalf("intervals: %s %s", cfg.Reminders.MinInterval, cfg.Reminders.MaxInterval)
	}
	if !cfg.Reminders.QuietHours.Enabled {
		t.Fatalf("quiet hours not loaded")
	}
	if cfg.Scoring.MinConfidence != 0.6 {
		t.Fatalf("defaults not applied: %+v", cfg.Scoring)
	}
}

func TestLoadRejectsInvertedIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"reminders":{"min_interval":1200000000000,"max_interval":600000000000}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for min > max")
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.Kafka.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("kafka without brokers should fail")
	}

	cfg = DefaultConfig()
	cfg.Reminders.QuietHours.Enabled = true
	cfg.Reminders.QuietHours.StartHour = 25
	if err := Validate(cfg); err == nil {
		t.Fatalf("quiet hour 25 should fail")
	}

	cfg = DefaultConfig()
	cfg.Snapshot.Redis.Enabled = true
	cfg.Snapshot.Redis.Addr = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("redis without addr should fail")
	}
}

func TestQuietHoursContains(t *testing.T) {
	q := QuietHoursConfig{Enabled: true, StartHour: 22, EndHour: 6}
	for _, hour := range []int{22, 23, 0, 3, 5} {
		if !q.Contains(hour) {
			t.Fatalf("hour %d should be quiet", hour)
		}
	}
	for _, hour := range []int{6, 12, 21} {
		if q.Contains(hour) {
			t.Fatalf("hour %d should not be quiet", hour)
		}
	}

	q = QuietHoursConfig{Enabled: true, StartHour: 9, EndHour: 17}
	if !q.Contains(9) || q.Contains(17) {
		t.Fatalf("non-wrapping range bounds wrong")
	}

	q = QuietHoursConfig{Enabled: true, StartHour: 8, EndHour: 8}
	if !q.Contains(0) || !q.Contains(23) {
		t.Fatalf("start == end should cover whole day")
	}

	q = QuietHoursConfig{Enabled: false, StartHour: 0, EndHour: 23}
	if q.Contains(12) {
		t.Fatalf("disabled quiet hours should never match")
	}
}

func TestAllowedTypes(t *testing.T) {
	r := ReminderConfig{}
	if !r.Allows("overlay") {
		t.Fatalf("empty list should permit all")
	}
	r.AllowedTypes = []string{"Notification", " vibration "}
	if !r.Allows("notification") || !r.Allows("vibration") {
		t.Fatalf("case and whitespace should not matter")
	}
	if r.Allows("overlay") {
		t.Fatalf("overlay not in list")
	}
}

func TestManagerUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *m.Get()
	next.LogLevel = "warn"
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Get().LogLevel != "warn" {
		t.Fatalf("update not visible")
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LogLevel != "warn" {
		t.Fatalf("update not persisted")
	}
}
