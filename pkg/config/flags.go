package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --backend
// on "switchboard chat", "switchboard workflow run" and "switchboard serve").
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "backend.url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags to
// avoid typos or drift from one command to another.
const (
	FlagBackend     = "backend"
	FlagGateway     = "gateway"
	FlagMode        = "mode"
	FlagAPIKey      = "api-key"
	FlagTimeout     = "timeout"
	FlagRelayListen = "listen"
	FlagSQLite      = "sqlite"
	FlagPostgres    = "postgres"
	FlagPublisher   = "publisher"
	FlagPubTarget   = "publisher-target"
	FlagPubTopic    = "publisher-topic"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagBackend:     {Name: "backend", Shorthand: "b", ViperKey: "backend.url", Description: "Orchestration backend URL (direct mode)"},
	FlagGateway:     {Name: "gateway", ViperKey: "backend.gateway_url", Description: "Gateway URL (gateway mode)"},
	FlagMode:        {Name: "mode", ViperKey: "backend.mode", Description: "Backend mode: direct or gateway"},
	FlagAPIKey:      {Name: "api-key", ViperKey: "backend.api_key", Description: "Bearer token for the backend"},
	FlagTimeout:     {Name: "timeout", ViperKey: "backend.timeout", Description: "Upper bound for one execution stream (e.g. 10m)"},
	FlagRelayListen: {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagSQLite:      {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite transcript database (default: in-memory)"},
	FlagPostgres:    {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for transcripts"},
	FlagPublisher:   {Name: "publisher", ViperKey: "eventstream.provider", Description: "Event publisher: nop, kafka, or redis"},
	FlagPubTarget:   {Name: "publisher-target", ViperKey: "eventstream.target", Description: "Kafka brokers (comma separated) or redis address"},
	FlagPubTopic:    {Name: "publisher-topic", ViperKey: "eventstream.topic", Description: "Kafka topic or redis stream name"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
