package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	AllowAutoCreateQueues bool                     `json:"allowAutoCreateQueues"`
	QueueNameRegex        string                   `json:"queueNameRegex"`
	MaxQueues             int                      `json:"maxQueues"`
	QueueDefaults         QueueDefaults            `json:"queueDefaults"`
	Queues                map[string]QueueDefaults `json:"queues"` // per-queue overrides
}

// QueueDefaults captures per-queue baseline settings.
type QueueDefaults struct {
	// LeaseTimeoutMs is the default lease timeout for checkouts. 0 means
	// leases never expire unless a checkout asks for a timeout.
	LeaseTimeoutMs int64 `json:"leaseTimeoutMs"`
	// ReaperIntervalMs is the expiry scan cadence. 0 uses the engine
	// default (100ms).
	ReaperIntervalMs int64 `json:"reaperIntervalMs"`
}

// LeaseTimeout returns the default lease timeout as a duration, false when
// unset.
func (d QueueDefaults) LeaseTimeout() (time.Duration, bool) {
	if d.LeaseTimeoutMs <= 0 {
		return 0, false
	}
	return time.Duration(d.LeaseTimeoutMs) * time.Millisecond, true
}

// ReaperInterval returns the reaper interval as a duration, false when
// unset.
func (d QueueDefaults) ReaperInterval() (time.Duration, bool) {
	if d.ReaperIntervalMs <= 0 {
		return 0, false
	}
	return time.Duration(d.ReaperIntervalMs) * time.Millisecond, true
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		AllowAutoCreateQueues: true,
		QueueNameRegex:        "^[a-z0-9-_]{1,64}$",
		MaxQueues:             0, // unlimited
		QueueDefaults: QueueDefaults{
			LeaseTimeoutMs: 30_000,
		},
	}
}

// ForQueue resolves the effective defaults for a named queue: the per-queue
// override when present, else QueueDefaults.
func (c Config) ForQueue(name string) QueueDefaults {
	if d, ok := c.Queues[name]; ok {
		return d
	}
	return c.QueueDefaults
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
