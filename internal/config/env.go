package config

import (
	"fmt"
	"strconv"
	"time"
)

// LookupFunc источник переменных окружения (os.LookupEnv).
type LookupFunc func(key string) (string, bool)

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func str(field func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func dur(field func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func integer(field func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

var envVars = []envVar{
	{"EDGESYNC_REPLICA_ID", str(func(c *Config) *string { return &c.Replica.ID })},
	{"EDGESYNC_PEER_URL", str(func(c *Config) *string { return &c.Replica.PeerURL })},
	{"EDGESYNC_TRANSPORT", str(func(c *Config) *string { return &c.Replica.Transport })},
	{"EDGESYNC_STORAGE_BACKEND", str(func(c *Config) *string { return &c.Storage.Backend })},
	{"EDGESYNC_STORAGE_PATH", str(func(c *Config) *string { return &c.Storage.Path })},
	{"EDGESYNC_SERVER_ADDRESS", str(func(c *Config) *string { return &c.Server.Address })},
	{"EDGESYNC_AUTH_SECRET", str(func(c *Config) *string { return &c.Auth.Secret })},
	{"EDGESYNC_CRYPTO_SALT", str(func(c *Config) *string { return &c.Crypto.Salt })},
	{"EDGESYNC_LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"EDGESYNC_LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
	{"EDGESYNC_MONITOR_INTERVAL", dur(func(c *Config) *time.Duration { return &c.Network.MonitorInterval })},
	{"EDGESYNC_MIN_SYNC_INTERVAL", dur(func(c *Config) *time.Duration { return &c.Scheduler.MinInterval })},
	{"EDGESYNC_MAX_SYNC_INTERVAL", dur(func(c *Config) *time.Duration { return &c.Scheduler.MaxInterval })},
	{"EDGESYNC_BATCH_SIZE", integer(func(c *Config) *int { return &c.Session.BatchSize })},
	{"EDGESYNC_BANDWIDTH_BUDGET", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Scheduler.BandwidthBudget = n
		return nil
	}},
}

// ApplyEnv переопределяет значения из переменных EDGESYNC_*.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.apply(c, v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, ev.name, err)
		}
	}
	return nil
}
