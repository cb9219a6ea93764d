// Package switchboardcmder
package switchboardcmder

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/switchboard/cmd/switchboard/auth"
	chatcmder "github.com/papercomputeco/switchboard/cmd/switchboard/chat"
	configcmder "github.com/papercomputeco/switchboard/cmd/switchboard/config"
	historycmder "github.com/papercomputeco/switchboard/cmd/switchboard/history"
	servecmder "github.com/papercomputeco/switchboard/cmd/switchboard/serve"
	workflowcmder "github.com/papercomputeco/switchboard/cmd/switchboard/workflow"
	versioncmder "github.com/papercomputeco/switchboard/cmd/version"
)

const switchboardLongDesc string = `Switchboard is a terminal console for agent orchestration backends.

It streams agent and workflow executions, normalizes the backend's
event stream, and records every run so it can be replayed later.

Common commands:
  switchboard chat <agent-id>         Chat with an agent
  switchboard workflow run <id>       Run a workflow
  switchboard history list            List recorded runs
  switchboard serve                   Run the browser-facing relay

Settings come from flags, SWITCHBOARD_* environment variables (a .env
file in the working directory is loaded first), and config.toml in the
.switchboard/ directory, in that order.`

const switchboardShortDesc string = "Switchboard - Agent Console"

func NewSwitchboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "switchboard",
		Short:        switchboardShortDesc,
		Long:         switchboardLongDesc,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is not an error.
			_ = godotenv.Load()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .switchboard/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(workflowcmder.NewWorkflowCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
