package config

import (
	"fmt"
	"time"
)

// Config represents the persistent switchboard configuration stored as
// config.toml in the .switchboard/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Backend     BackendConfig     `toml:"backend"`
	Relay       RelayConfig       `toml:"relay"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// BackendConfig describes the orchestration backend the console talks to.
type BackendConfig struct {
	// URL is the backend's direct API base URL.
	URL string `toml:"url,omitempty"`

	// GatewayURL is the base URL used in gateway mode.
	GatewayURL string `toml:"gateway_url,omitempty"`

	// Mode is "direct" or "gateway".
	Mode string `toml:"mode,omitempty"`

	APIKey string `toml:"api_key,omitempty"`

	// Timeout bounds a whole execution stream, e.g. "10m".
	Timeout string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, returning 0 (no limit) when unset.
func (b BackendConfig) TimeoutDuration() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid backend.timeout %q: %w", b.Timeout, err)
	}
	return d, nil
}

// RelayConfig holds settings for the browser-facing relay server.
type RelayConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects where run transcripts are recorded. PostgresDSN
// wins over SQLitePath; with neither set, transcripts live in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig configures republishing of normalized events.
type EventStreamConfig struct {
	// Provider is "nop", "kafka", or "redis".
	Provider string `toml:"provider,omitempty"`

	// Target is a comma separated broker list for kafka, or a redis address.
	Target string `toml:"target,omitempty"`

	// Topic is the kafka topic or redis stream name.
	Topic string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"backend.url": {
		get: func(c *Config) string { return c.Backend.URL },
		set: func(c *Config, v string) error { c.Backend.URL = v; return nil },
	},
	"backend.gateway_url": {
		get: func(c *Config) string { return c.Backend.GatewayURL },
		set: func(c *Config, v string) error { c.Backend.GatewayURL = v; return nil },
	},
	"backend.mode": {
		get: func(c *Config) string { return c.Backend.Mode },
		set: func(c *Config, v string) error {
			if v != ModeDirect && v != ModeGateway {
				return fmt.Errorf("invalid value for backend.mode: %q (expected %s or %s)", v, ModeDirect, ModeGateway)
			}
			c.Backend.Mode = v
			return nil
		},
	},
	"backend.api_key": {
		get: func(c *Config) string { return c.Backend.APIKey },
		set: func(c *Config, v string) error { c.Backend.APIKey = v; return nil },
	},
	"backend.timeout": {
		get: func(c *Config) string { return c.Backend.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for backend.timeout: %w", err)
			}
			c.Backend.Timeout = v
			return nil
		},
	},
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "nop", "kafka", "redis":
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (expected nop, kafka, or redis)", v)
			}
		},
	},
	"eventstream.target": {
		get: func(c *Config) string { return c.EventStream.Target },
		set: func(c *Config, v string) error { c.EventStream.Target = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}
