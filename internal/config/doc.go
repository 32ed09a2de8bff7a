// Package config loads leasedkeyq server configuration from a JSON file
// with LKQ_* environment variable overlays.
package config
