package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string         `json:"log_level" yaml:"log_level"`
	Ingest    IngestConfig   `json:"ingest" yaml:"ingest"`
	Scoring   ScoringConfig  `json:"scoring" yaml:"scoring"`
	Reminders ReminderConfig `json:"reminders" yaml:"reminders"`
	Sessions  SessionsConfig `json:"sessions" yaml:"sessions"`
	API       APIConfig      `json:"api" yaml:"api"`
	Storage   StorageConfig  `json:"storage" yaml:"storage"`
	Snapshot  SnapshotConfig `json:"snapshot" yaml:"snapshot"`
}

type IngestConfig struct {
	ChannelBuffer    int             `json:"channel_buffer" yaml:"channel_buffer"`
	DefaultSessionID string          `json:"default_session_id" yaml:"default_session_id"`
	REST             RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream        TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	Kafka            KafkaConfig     `json:"kafka" yaml:"kafka"`
	MQTT             MQTTConfig      `json:"mqtt" yaml:"mqtt"`
	Replay           ReplayConfig    `json:"replay" yaml:"replay"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type MQTTConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Broker   string   `json:"broker" yaml:"broker"`
	ClientID string   `json:"client_id" yaml:"client_id"`
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`
	Topics   []string `json:"topics" yaml:"topics"`
	QOS      byte     `json:"qos" yaml:"qos"`
}

type ReplayConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
	Files      []string `json:"files" yaml:"files"`
}

type ScoringConfig struct {
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	HistoryLimit  int     `json:"history_limit" yaml:"history_limit"`
}

// ReminderConfig is the user-adjustable reminder policy surface. It is
// replaced wholesale at runtime; in-flight timers are unaffected until the
// next evaluation cycle.
type ReminderConfig struct {
	Enabled             bool             `json:"enabled" yaml:"enabled"`
	MinInterval         time.Duration    `json:"min_interval" yaml:"min_interval"`
	MaxInterval         time.Duration    `json:"max_interval" yaml:"max_interval"`
	EscalationThreshold int              `json:"escalation_threshold" yaml:"escalation_threshold"`
	AdaptToBehavior     bool             `json:"adapt_to_behavior" yaml:"adapt_to_behavior"`
	QuietHours          QuietHoursConfig `json:"quiet_hours" yaml:"quiet_hours"`
	WorkMode            bool             `json:"work_mode" yaml:"work_mode"`
	AllowedTypes        []string         `json:"allowed_types" yaml:"allowed_types"`
	ExpiryTimeout       time.Duration    `json:"expiry_timeout" yaml:"expiry_timeout"`
	HistoryLimit        int              `json:"history_limit" yaml:"history_limit"`
}

type QuietHoursConfig struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	StartHour int  `json:"start_hour" yaml:"start_hour"`
	EndHour   int  `json:"end_hour" yaml:"end_hour"`
}

// Contains reports whether hour falls inside the configured range. The range
// wraps midnight when start > end (e.g. 22→6); start == end means the whole
// day is quiet.
func (q QuietHoursConfig) Contains(hour int) bool {
	if !q.Enabled {
		return false
	}
	if q.StartHour == q.EndHour {
		return true
	}
	if q.StartHour < q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	return hour >= q.StartHour || hour < q.EndHour
}

// Allows reports whether the type is permitted. An empty list permits all.
func (r ReminderConfig) Allows(typ string) bool {
	if len(r.AllowedTypes) == 0 {
		return true
	}
	for _, t := range r.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(t), typ) {
			return true
		}
	}
	return false
}

type SessionsConfig struct {
	Limit         int           `json:"limit" yaml:"limit"`
	IdleTTL       time.Duration `json:"idle_ttl" yaml:"idle_ttl"`
	StatsInterval time.Duration `json:"stats_interval" yaml:"stats_interval"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type SnapshotConfig struct {
	StoreLimit int         `json:"store_limit" yaml:"store_limit"`
	Redis      RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Addr      string        `json:"addr" yaml:"addr"`
	Password  string        `json:"password" yaml:"password"`
	DB        int           `json:"db" yaml:"db"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer:    10000,
			DefaultSessionID: "default",
			REST:             RESTConfig{Enabled: true, Addr: ":8080"},
			TCPStream:        TCPStreamConfig{Enabled: false, Addr: ":9000"},
			Kafka:            KafkaConfig{Enabled: false},
			MQTT:             MQTTConfig{Enabled: false, ClientID: "postureguard", QOS: 1},
			Replay:           ReplayConfig{Enabled: false, StartAtEnd: true},
		},
		Scoring: ScoringConfig{
			MinConfidence: 0.6,
			HistoryLimit:  50,
		},
		Reminders: ReminderConfig{
			Enabled:             true,
			MinInterval:         2 * time.Minute,
			MaxInterval:         15 * time.Minute,
			EscalationThreshold: 3,
			AdaptToBehavior:     true,
			QuietHours:          QuietHoursConfig{Enabled: false, StartHour: 22, EndHour: 6},
			WorkMode:            false,
			AllowedTypes:        nil,
			ExpiryTimeout:       30 * time.Second,
			HistoryLimit:        100,
		},
		Sessions: SessionsConfig{
			Limit:         1000,
			IdleTTL:       2 * time.Hour,
			StatsInterval: 5 * time.Second,
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:postureguard.db?_pragma=busy_timeout(5000)"},
		Snapshot: SnapshotConfig{
			StoreLimit: 5000,
			Redis:      RedisConfig{Enabled: false, KeyPrefix: "postureguard:session:", TTL: time.Minute},
		},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Ingest.DefaultSessionID == "" {
		cfg.Ingest.DefaultSessionID = "default"
	}
	if cfg.Scoring.MinConfidence <= 0 {
		cfg.Scoring.MinConfidence = 0.6
	}
	if cfg.Scoring.HistoryLimit <= 0 {
		cfg.Scoring.HistoryLimit = 50
	}
	if cfg.Reminders.MinInterval <= 0 {
		cfg.Reminders.MinInterval = 2 * time.Minute
	}
	if cfg.Reminders.MaxInterval <= 0 {
		cfg.Reminders.MaxInterval = 15 * time.Minute
	}
	if cfg.Reminders.ExpiryTimeout <= 0 {
		cfg.Reminders.ExpiryTimeout = 30 * time.Second
	}
	if cfg.Reminders.HistoryLimit <= 0 {
		cfg.Reminders.HistoryLimit = 100
	}
	if cfg.Reminders.EscalationThreshold <= 0 {
		cfg.Reminders.EscalationThreshold = 3
	}
	if cfg.Sessions.Limit <= 0 {
		cfg.Sessions.Limit = 1000
	}
	if cfg.Sessions.IdleTTL <= 0 {
		cfg.Sessions.IdleTTL = 2 * time.Hour
	}
	if cfg.Sessions.StatsInterval <= 0 {
		cfg.Sessions.StatsInterval = 5 * time.Second
	}
	if cfg.Snapshot.StoreLimit <= 0 {
		cfg.Snapshot.StoreLimit = 5000
	}
	if cfg.Snapshot.Redis.KeyPrefix == "" {
		cfg.Snapshot.Redis.KeyPrefix = "postureguard:session:"
	}
	if cfg.Snapshot.Redis.TTL <= 0 {
		cfg.Snapshot.Redis.TTL = time.Minute
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.MQTT.Enabled {
		if cfg.Ingest.MQTT.Broker == "" || len(cfg.Ingest.MQTT.Topics) == 0 {
			return errors.New("ingest.mqtt requires broker and topics")
		}
	}
	if cfg.Ingest.Replay.Enabled && len(cfg.Ingest.Replay.Files) == 0 {
		return errors.New("ingest.replay.files required when ingest.replay.enabled is true")
	}
	if cfg.Reminders.MinInterval > cfg.Reminders.MaxInterval {
		return fmt.Errorf("reminders.min_interval %s exceeds max_interval %s", cfg.Reminders.MinInterval, cfg.Reminders.MaxInterval)
	}
	if q := cfg.Reminders.QuietHours; q.Enabled {
		if q.StartHour < 0 || q.StartHour > 23 || q.EndHour < 0 || q.EndHour > 23 {
			return errors.New("reminders.quiet_hours hours must be in 0..23")
		}
	}
	if cfg.Snapshot.Redis.Enabled && cfg.Snapshot.Redis.Addr == "" {
		return errors.New("snapshot.redis.addr required when snapshot.redis.enabled is true")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func NewManagerFromConfig(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg.Store(cfg)
	if m.path != "" {
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
