// Package config loads replica settings from a YAML file, the EDGESYNC_*
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/edgesync/internal/storage"
)

// Profiles selected by EDGESYNC_ENV
const (
	ProfileLocal = "local"
	EnvProfile   = "EDGESYNC_ENV"
)

// Transport names
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config полная конфигурация реплики.
type Config struct {
	Replica    ReplicaConfig    `yaml:"replica"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Crypto     CryptoConfig     `yaml:"crypto"`
	Categories []CategoryConfig `yaml:"categories"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Session    SessionConfig    `yaml:"session"`
	Network    NetworkConfig    `yaml:"network"`
}

// ReplicaConfig идентичность реплики и адрес пира.
type ReplicaConfig struct {
	ID        string `yaml:"id"`
	PeerURL   string `yaml:"peer_url"`
	Transport string `yaml:"transport"`
}

// StorageConfig параметры локального хранилища.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// NetworkConfig параметры мониторинга канала.
type NetworkConfig struct {
	MonitorInterval time.Duration `yaml:"monitor_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	PingSamples     int           `yaml:"ping_samples"`
	ProbeBytes      int           `yaml:"probe_bytes"`
	History         int           `yaml:"history"`
}

// SessionConfig таймауты сессии.
type SessionConfig struct {
	NegotiateTimeout time.Duration `yaml:"negotiate_timeout"`
	BatchTimeout     time.Duration `yaml:"batch_timeout"`
	CommitTimeout    time.Duration `yaml:"commit_timeout"`
	LeaseTTL         time.Duration `yaml:"lease_ttl"`
	BatchSize        int           `yaml:"batch_size"`
}

// SchedulerConfig параметры адаптивного планировщика.
type SchedulerConfig struct {
	MinInterval       time.Duration `yaml:"min_interval"`
	MaxInterval       time.Duration `yaml:"max_interval"`
	Tick              time.Duration `yaml:"tick"`
	ScoreMaxAge       time.Duration `yaml:"score_max_age"`
	SmoothingWindow   time.Duration `yaml:"smoothing_window"`
	BudgetWindow      time.Duration `yaml:"budget_window"`
	BandwidthBudget   int64         `yaml:"bandwidth_budget"`
	Threshold         float64       `yaml:"threshold"`
	BackoffFactor     float64       `yaml:"backoff_factor"`
	BackpressureLimit int           `yaml:"backpressure_limit"`
	ResetThreshold    int           `yaml:"reset_threshold"`
	PriorityFastPath  int           `yaml:"priority_fast_path"`
	StatsWindow       int           `yaml:"stats_window"`
}

// CategoryConfig описание категории данных.
type CategoryConfig struct {
	Name               string        `yaml:"name"`
	Consistency        string        `yaml:"consistency"`
	Merge              string        `yaml:"merge,omitempty"`
	Codec              string        `yaml:"codec,omitempty"`
	StalenessTolerance time.Duration `yaml:"staleness_tolerance,omitempty"`
	Priority           int           `yaml:"priority"`
}

// ServerConfig параметры облачной реплики.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	MaxLeaseTTL     time.Duration `yaml:"max_lease_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit"` // запросов в минуту на пира
	MaxBatch        int           `yaml:"max_batch"`
}

// AuthConfig параметры токенов реплик.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// CryptoConfig параметры шифрования sealed-категорий.
type CryptoConfig struct {
	Salt     string `yaml:"salt,omitempty"`      // Base64
	KeyCheck string `yaml:"key_check,omitempty"` // отпечаток ключа для проверки фразы
}

// LogConfig параметры логирования.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text или json
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Replica: ReplicaConfig{
			PeerURL:   "http://localhost:8080",
			Transport: TransportHTTP,
		},
		Storage: StorageConfig{
			Backend: storage.BackendBolt,
			Path:    "edgesync.db",
		},
		Network: NetworkConfig{
			MonitorInterval: 5 * time.Second,
			RequestTimeout:  10 * time.Second,
			PingSamples:     3,
			ProbeBytes:      8192,
			History:         100,
		},
		Session: SessionConfig{
			NegotiateTimeout: 10 * time.Second,
			BatchTimeout:     15 * time.Second,
			CommitTimeout:    30 * time.Second,
			LeaseTTL:         time.Minute,
			BatchSize:        500,
		},
		Scheduler: SchedulerConfig{
			MinInterval:       time.Second,
			MaxInterval:       5 * time.Minute,
			Tick:              5 * time.Second,
			ScoreMaxAge:       time.Minute,
			SmoothingWindow:   30 * time.Second,
			BudgetWindow:      time.Hour,
			Threshold:         0.1,
			BackoffFactor:     2,
			BackpressureLimit: 1000,
			ResetThreshold:    1,
			PriorityFastPath:  9,
			StatsWindow:       50,
		},
		Categories: []CategoryConfig{
			{Name: "default", Consistency: "eventual", Priority: 5},
		},
		Server: ServerConfig{
			Address:         ":8080",
			SessionTTL:      2 * time.Minute,
			MaxLeaseTTL:     5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       600,
			MaxBatch:        1000,
		},
		Auth: AuthConfig{
			TokenTTL: 15 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load читает конфигурацию: значения по умолчанию, файл path (если задан),
// профиль EDGESYNC_ENV и переменные окружения. Ссылки ${VAR} в файле
// раскрываются из окружения.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.Parse(data); err != nil {
			return nil, err
		}
	}

	cfg.ApplyProfile(os.Getenv(EnvProfile))
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse накладывает YAML-документ на текущие значения.
func (c *Config) Parse(data []byte) error {
	expanded := os.Expand(string(data), os.Getenv)
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Save записывает конфигурацию в YAML-файл.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	// файл содержит секрет токенов
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyProfile применяет именованный профиль. Неизвестные профили игнорируются.
func (c *Config) ApplyProfile(profile string) {
	switch profile {
	case ProfileLocal:
		// быстрый мониторинг и короткий интервал для разработки
		c.Network.MonitorInterval = 2 * time.Second
		c.Scheduler.MinInterval = 500 * time.Millisecond
		c.Log.Level = "debug"
	}
}

// ParseLevel преобразует имя уровня в slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, level)
	}
	return l, nil
}

// NewLogger создает логгер по настройкам log.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
}
