package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/storage"
	"github.com/iudanet/edgesync/internal/validation"
)

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := validation.ValidateReplicaID(c.Replica.ID); err != nil {
		add("replica.id: %w", err)
	}
	switch c.Replica.Transport {
	case TransportHTTP, TransportWS:
	default:
		add("replica.transport: unknown transport %q", c.Replica.Transport)
	}
	if c.Replica.PeerURL != "" {
		if u, err := url.Parse(c.Replica.PeerURL); err != nil || u.Host == "" {
			add("replica.peer_url: invalid url %q", c.Replica.PeerURL)
		}
	}

	switch c.Storage.Backend {
	case storage.BackendBolt, storage.BackendBadger, storage.BackendSQLite:
	default:
		add("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		add("storage.path: required")
	}

	if c.Network.MonitorInterval <= 0 {
		add("network.monitor_interval: must be positive")
	}
	if c.Session.BatchSize <= 0 {
		add("session.batch_size: must be positive")
	}
	if c.Scheduler.MinInterval <= 0 || c.Scheduler.MaxInterval < c.Scheduler.MinInterval {
		add("scheduler: min_interval must be positive and not above max_interval")
	}
	if c.Scheduler.BackoffFactor < 1 {
		add("scheduler.backoff_factor: must be at least 1")
	}
	if c.Scheduler.SmoothingWindow < 0 {
		add("scheduler.smoothing_window: must not be negative")
	}
	if c.Scheduler.BandwidthBudget < 0 {
		add("scheduler.bandwidth_budget: must not be negative")
	}

	if len(c.Categories) == 0 {
		add("categories: at least one category is required")
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cc := range c.Categories {
		if seen[cc.Name] {
			add("categories: duplicate %q", cc.Name)
		}
		seen[cc.Name] = true
		if err := cc.validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateServer дополнительно проверяет настройки облачной реплики.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch {
	case c.Server.Address == "":
		return fmt.Errorf("%w: server.address: required", ErrInvalidConfig)
	case len(c.Auth.Secret) < 16:
		return fmt.Errorf("%w: auth.secret: at least 16 bytes required", ErrInvalidConfig)
	}
	return nil
}

// validate проверяет описание без построения кодека: ключ sealed-категорий
// появляется только после ввода парольной фразы.
func (cc CategoryConfig) validate() error {
	wrap := func(err error) error {
		return fmt.Errorf("category %q: %w", cc.Name, err)
	}

	merge, err := adapter.MergeByName(cc.Merge)
	if err != nil {
		return wrap(err)
	}
	switch cc.Codec {
	case "", adapter.CodecRaw, adapter.CodecJSON:
	case adapter.CodecSealed:
		if merge != nil {
			return wrap(fmt.Errorf("merge %q requires a deterministic codec", cc.Merge))
		}
	default:
		return wrap(fmt.Errorf("unknown codec %q", cc.Codec))
	}

	cat := &adapter.Category{
		Name:               cc.Name,
		Consistency:        models.ConsistencyKind(cc.Consistency),
		Priority:           cc.Priority,
		StalenessTolerance: cc.StalenessTolerance,
	}
	if err := cat.Validate(); err != nil {
		return wrap(err)
	}
	return nil
}
