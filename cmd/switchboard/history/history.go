// Package historycmder provides the history command for browsing recorded
// runs.
package historycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/storage"
)

const historyLongDesc string = `Browse recorded agent and workflow runs.

Runs are read from the configured transcript storage (--postgres,
--sqlite, or storage.* in config.toml). In-memory storage does not
outlive a single command, so history needs persistent storage.

  switchboard history list              List recent runs
  switchboard history show <run-id>     Replay a run's transcript`

const historyShortDesc string = "Browse recorded runs"

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

// openDriver resolves the storage configuration for cmd and opens it.
func openDriver(ctx context.Context, cmd *cobra.Command, logger *zap.Logger) (storage.Driver, error) {
	cfg, err := stack.Load(cmd, stack.StorageFlags)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.Storage.PostgresDSN == "" && cfg.Storage.SQLitePath == "" {
		return nil, fmt.Errorf("no persistent storage configured; pass --sqlite or --postgres")
	}

	return stack.NewDriver(ctx, cfg.Storage, logger)
}
