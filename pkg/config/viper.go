package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/switchboard/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SWITCHBOARD_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SWITCHBOARD_BACKEND_URL, SWITCHBOARD_BACKEND_MODE, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("SWITCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective configuration.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Backend: BackendConfig{
			URL:        v.GetString("backend.url"),
			GatewayURL: v.GetString("backend.gateway_url"),
			Mode:       v.GetString("backend.mode"),
			APIKey:     v.GetString("backend.api_key"),
			Timeout:    v.GetString("backend.timeout"),
		},
		Relay: RelayConfig{
			Listen: v.GetString("relay.listen"),
		},
		Storage: StorageConfig{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Target:   v.GetString("eventstream.target"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Backend
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.gateway_url", d.Backend.GatewayURL)
	v.SetDefault("backend.mode", d.Backend.Mode)
	v.SetDefault("backend.api_key", d.Backend.APIKey)
	v.SetDefault("backend.timeout", d.Backend.Timeout)

	// Relay
	v.SetDefault("relay.listen", d.Relay.Listen)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.target", d.EventStream.Target)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
