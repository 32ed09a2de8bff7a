package config

import (
	"os"
	"strconv"
)

// FromEnv overlays LKQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LKQ_ALLOW_AUTO_CREATE_QUEUES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateQueues = b
		}
	}
	if v := os.Getenv("LKQ_QUEUE_NAME_REGEX"); v != "" {
		cfg.QueueNameRegex = v
	}
	if v := os.Getenv("LKQ_MAX_QUEUES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxQueues = n
		}
	}
	if v := os.Getenv("LKQ_DEFAULT_LEASE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.QueueDefaults.LeaseTimeoutMs = n
		}
	}
	if v := os.Getenv("LKQ_REAPER_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.QueueDefaults.ReaperIntervalMs = n
		}
	}
}
