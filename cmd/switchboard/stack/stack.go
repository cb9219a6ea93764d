// Package stack assembles the runtime shared by switchboard commands: the
// effective configuration, the backend client, transcript storage, the
// event publisher, metrics, and the recorder pool.
package stack

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/credentials"
	"github.com/papercomputeco/switchboard/pkg/eventstream"
	"github.com/papercomputeco/switchboard/pkg/eventstream/kafka"
	"github.com/papercomputeco/switchboard/pkg/eventstream/nop"
	"github.com/papercomputeco/switchboard/pkg/eventstream/redis"
	"github.com/papercomputeco/switchboard/pkg/metrics"
	"github.com/papercomputeco/switchboard/pkg/orchestrator"
	"github.com/papercomputeco/switchboard/pkg/recorder"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
	"github.com/papercomputeco/switchboard/pkg/storage/inmemory"
	"github.com/papercomputeco/switchboard/pkg/storage/postgres"
	"github.com/papercomputeco/switchboard/pkg/storage/sqlite"
)

// Flag registry keys grouped by what they configure.
var (
	BackendFlags = []string{
		config.FlagBackend,
		config.FlagGateway,
		config.FlagMode,
		config.FlagAPIKey,
		config.FlagTimeout,
	}

	StorageFlags = []string{
		config.FlagSQLite,
		config.FlagPostgres,
	}

	PublisherFlags = []string{
		config.FlagPublisher,
		config.FlagPubTarget,
		config.FlagPubTopic,
	}
)

// Keys joins flag key groups.
func Keys(groups ...[]string) []string {
	var keys []string
	for _, g := range groups {
		keys = append(keys, g...)
	}
	return keys
}

// AddFlags registers the given registry flags on cmd. Values are read back
// through viper, so the flag targets are not kept.
func AddFlags(cmd *cobra.Command, keys []string) {
	for _, key := range keys {
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}
}

// Load resolves the effective configuration for cmd with the precedence
// flag > env > config.toml > default. Without an explicit api key, the
// token stored for the active backend in credentials.toml is used.
func Load(cmd *cobra.Command, keys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	cfg := config.FromViper(v)
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey, err = storedToken(cfg.Backend, configDir)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ActiveURL is the backend URL the configured mode talks to.
func ActiveURL(cfg config.BackendConfig) string {
	if cfg.Mode == config.ModeGateway {
		return cfg.GatewayURL
	}
	return cfg.URL
}

func storedToken(cfg config.BackendConfig, configDir string) (string, error) {
	active := ActiveURL(cfg)
	if active == "" {
		return "", nil
	}

	mgr, err := credentials.NewManager(configDir, false)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	token, err := mgr.Token(active)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	return token, nil
}

// Stack is the assembled runtime. Close releases everything it opened.
type Stack struct {
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Collector
	Client    *orchestrator.Client
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Recorder  *recorder.Pool
}

// New builds a Stack from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stack{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	s.Metrics = metrics.New(s.Registry)

	client, err := NewClient(cfg.Backend, logger, s.Metrics)
	if err != nil {
		return nil, err
	}
	s.Client = client

	s.Driver, err = NewDriver(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	s.Publisher, err = NewPublisher(ctx, cfg.EventStream, logger)
	if err != nil {
		_ = s.Driver.Close()
		return nil, err
	}

	s.Recorder, err = recorder.NewPool(&recorder.Config{
		Driver:    s.Driver,
		Publisher: s.Publisher,
		Logger:    logger,
	})
	if err != nil {
		_ = s.Publisher.Close()
		_ = s.Driver.Close()
		return nil, err
	}

	return s, nil
}

// Close drains the recorder before closing the publisher and storage it
// writes to.
func (s *Stack) Close() {
	s.Recorder.Close()

	if err := s.Publisher.Close(); err != nil {
		s.Logger.Warn("failed to close publisher", zap.Error(err))
	}
	if err := s.Driver.Close(); err != nil {
		s.Logger.Warn("failed to close storage", zap.Error(err))
	}
}

// NewClient builds the backend client. Stream counters go to collector when
// it is non-nil.
func NewClient(cfg config.BackendConfig, logger *zap.Logger, collector *metrics.Collector) (*orchestrator.Client, error) {
	mode, err := orchestrator.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	c := orchestrator.Config{
		BaseURL:    cfg.URL,
		GatewayURL: cfg.GatewayURL,
		Mode:       mode,
		APIKey:     cfg.APIKey,
		Timeout:    timeout,
		Logger:     logger,
	}
	if collector != nil {
		c.StreamOptions = []sse.Option{sse.WithObserver(collector)}
		c.OnOpenFailure = collector.OpenFailed
	}

	client, err := orchestrator.NewClient(c)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return client, nil
}

// NewDriver opens transcript storage. PostgreSQL wins over SQLite; with
// neither configured transcripts are kept in memory.
func NewDriver(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Driver, error) {
	if cfg.PostgresDSN != "" {
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Debug("using PostgreSQL storage")
		return driver, nil
	}

	if cfg.SQLitePath != "" {
		driver, err := sqlite.NewDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Debug("using SQLite storage", zap.String("path", cfg.SQLitePath))
		return driver, nil
	}

	logger.Debug("using in-memory storage")
	return inmemory.NewDriver(), nil
}

// NewPublisher creates the configured event publisher.
func NewPublisher(ctx context.Context, cfg config.EventStreamConfig, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: cfg.Target, Topic: cfg.Topic})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		logger.Debug("publishing run events to kafka",
			zap.String("brokers", cfg.Target),
			zap.String("topic", cfg.Topic),
		)
		return pub, nil

	case "redis":
		pub, err := redis.NewPublisher(ctx, redis.Config{Addr: cfg.Target, Stream: cfg.Topic})
		if err != nil {
			return nil, fmt.Errorf("creating redis publisher: %w", err)
		}
		logger.Debug("publishing run events to redis",
			zap.String("addr", cfg.Target),
			zap.String("stream", cfg.Topic),
		)
		return pub, nil

	default:
		return nil, fmt.Errorf("unsupported event publisher %q", cfg.Provider)
	}
}
