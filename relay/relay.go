package relay

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/orchestrator"
	"github.com/papercomputeco/switchboard/pkg/recorder"
	"github.com/papercomputeco/switchboard/pkg/storage"
)

// Server is the relay between the browser console and the backend.
type Server struct {
	config   Config
	client   *orchestrator.Client
	recorder *recorder.Pool
	driver   storage.Driver
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new relay server.
// The recorder and driver are injected so transcripts are shared with the
// CLI when both run in one process. Either may be nil, which disables
// recording or the history routes respectively.
func NewServer(config Config, client *orchestrator.Client, rec *recorder.Pool, driver storage.Driver, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gatherer := config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		client:   client,
		recorder: rec,
		driver:   driver,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Post("/agents/:id/stream", s.handleAgentStream)
	app.Post("/workflows/:id/stream", s.handleWorkflowStream)

	// Stream routes stay uncompressed so frames are flushed as they arrive.
	runs := app.Group("/runs", compress.New())
	runs.Get("/", s.handleListRuns)
	runs.Get("/:id", s.handleGetRun)
	runs.Get("/:id/events", s.handleRunEvents)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the relay server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting relay server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("mode", string(s.client.Mode())),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the relay server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
