package config

import (
	"errors"
	"fmt"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/netmon"
	"github.com/iudanet/edgesync/internal/scheduler"
	"github.com/iudanet/edgesync/internal/server/responder"
	"github.com/iudanet/edgesync/internal/session"
)

// ErrKeyRequired is returned when a sealed category is built without a key.
var ErrKeyRequired = errors.New("encryption key required for sealed categories")

// NeedsKey сообщает, есть ли sealed-категории.
func (c *Config) NeedsKey() bool {
	for _, cc := range c.Categories {
		if cc.Codec == adapter.CodecSealed {
			return true
		}
	}
	return false
}

// Registry строит реестр категорий. key нужен только sealed-категориям.
func (c *Config) Registry(key []byte) (*adapter.Registry, error) {
	reg, err := adapter.NewRegistry(nil)
	if err != nil {
		return nil, err
	}
	for _, cc := range c.Categories {
		cat, err := cc.Category(key)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(cat); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// RelayRegistry строит реестр облачной реплики. Облако хранит и пересылает
// sealed-значения как есть, поэтому ключ ему не нужен: merge для sealed
// запрещен, а LWW не читает payload.
func (c *Config) RelayRegistry() (*adapter.Registry, error) {
	reg, err := adapter.NewRegistry(nil)
	if err != nil {
		return nil, err
	}
	for _, cc := range c.Categories {
		if cc.Codec == adapter.CodecSealed {
			cc.Codec = adapter.CodecRaw
		}
		cat, err := cc.Category(nil)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(cat); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Category строит адаптер категории.
func (cc CategoryConfig) Category(key []byte) (*adapter.Category, error) {
	merge, err := adapter.MergeByName(cc.Merge)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", cc.Name, err)
	}

	var codec adapter.Codec
	switch cc.Codec {
	case "", adapter.CodecRaw:
		codec = adapter.RawCodec{}
	case adapter.CodecJSON:
		codec = adapter.JSONCodec{}
	case adapter.CodecSealed:
		if key == nil {
			return nil, fmt.Errorf("category %q: %w", cc.Name, ErrKeyRequired)
		}
		sealed, err := adapter.NewSealedCodec(key, cc.Name)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", cc.Name, err)
		}
		codec = sealed
	default:
		return nil, fmt.Errorf("category %q: unknown codec %q", cc.Name, cc.Codec)
	}

	return &adapter.Category{
		Name:               cc.Name,
		Consistency:        models.ConsistencyKind(cc.Consistency),
		Merge:              merge,
		MergeName:          cc.Merge,
		Codec:              codec,
		Priority:           cc.Priority,
		StalenessTolerance: cc.StalenessTolerance,
	}, nil
}

// SessionConfig возвращает настройки движка сессий.
func (c *Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.NegotiateTimeout = c.Session.NegotiateTimeout
	cfg.BatchTimeout = c.Session.BatchTimeout
	cfg.CommitTimeout = c.Session.CommitTimeout
	cfg.LeaseTTL = c.Session.LeaseTTL
	cfg.DefaultBatchSize = c.Session.BatchSize
	return cfg
}

// SchedulerConfig возвращает настройки планировщика.
func (c *Config) SchedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	s := c.Scheduler
	cfg.MinInterval = s.MinInterval
	cfg.MaxInterval = s.MaxInterval
	cfg.Tick = s.Tick
	cfg.ScoreMaxAge = s.ScoreMaxAge
	cfg.SmoothingWindow = s.SmoothingWindow
	cfg.BudgetWindow = s.BudgetWindow
	cfg.BandwidthBudget = s.BandwidthBudget
	cfg.Threshold = s.Threshold
	cfg.BackoffFactor = s.BackoffFactor
	cfg.BackpressureLimit = s.BackpressureLimit
	cfg.ResetThreshold = s.ResetThreshold
	cfg.PriorityFastPath = s.PriorityFastPath
	cfg.StatsWindow = s.StatsWindow
	cfg.BatchSize = c.Session.BatchSize
	return cfg
}

// MonitorConfig возвращает настройки мониторинга сети.
func (c *Config) MonitorConfig() netmon.Config {
	return netmon.Config{
		Interval: c.Network.MonitorInterval,
		History:  c.Network.History,
	}
}

// ResponderConfig возвращает настройки обслуживания сессий облака.
func (c *Config) ResponderConfig() responder.Config {
	cfg := responder.DefaultConfig()
	cfg.SessionTTL = c.Server.SessionTTL
	cfg.MaxLeaseTTL = c.Server.MaxLeaseTTL
	cfg.MaxBatch = c.Server.MaxBatch
	return cfg
}

// AuthConfig возвращает настройки токенов.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		Issuer: c.Auth.Issuer,
		Secret: []byte(c.Auth.Secret),
		TTL:    c.Auth.TokenTTL,
	}
}
