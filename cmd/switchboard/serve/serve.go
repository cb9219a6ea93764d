// Package servecmder provides the serve command, which runs the
// browser-facing relay.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/config"
	"github.com/papercomputeco/switchboard/pkg/logger"
	"github.com/papercomputeco/switchboard/relay"
)

var flagKeys = stack.Keys(
	[]string{config.FlagRelayListen},
	stack.BackendFlags,
	stack.StorageFlags,
	stack.PublisherFlags,
)

type serveCommander struct {
	debug  bool
	logger *zap.Logger
}

const serveLongDesc string = `Run the Switchboard relay.

The relay sits between the browser console and the orchestration backend.
It opens agent and workflow streams on the backend, normalizes them, and
re-emits every event to the browser as a clean SSE stream, recording each
run on the way through.

Routes:
  POST /agents/:id/stream        Stream an agent execution
  POST /workflows/:id/stream     Stream a workflow execution
  GET  /runs                     List recorded runs
  GET  /runs/:id                 A single run
  GET  /runs/:id/events          A run and its transcript
  GET  /metrics                  Prometheus metrics
  GET  /ping                     Health check`

const serveShortDesc string = "Run the browser-facing relay"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd)
		},
	}

	stack.AddFlags(cmd, flagKeys)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfg, err := stack.Load(cmd, flagKeys)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var st *stack.Stack
	if err := cliui.Step(cmd.ErrOrStderr(), "Opening storage and event publisher", func() error {
		st, err = stack.New(context.Background(), cfg, c.logger)
		return err
	}); err != nil {
		return err
	}
	defer st.Close()

	server := relay.NewServer(relay.Config{
		ListenAddr: cfg.Relay.Listen,
		Gatherer:   st.Registry,
	}, st.Client, st.Recorder, st.Driver, c.logger)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
