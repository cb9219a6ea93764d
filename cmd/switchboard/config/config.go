// Package configcmder provides the config command for managing persistent
// switchboard configuration stored in the .switchboard/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/config"
)

const configLongDesc string = `Manage persistent switchboard configuration.

Configuration is stored as config.toml in the .switchboard/ directory and
provides default values for command flags. CLI flags and SWITCHBOARD_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  backend.url, backend.gateway_url, backend.mode, backend.api_key,
  backend.timeout, relay.listen, storage.sqlite_path, storage.postgres_dsn,
  eventstream.provider, eventstream.target, eventstream.topic

Use subcommands to get, set, or list configuration values:
  switchboard config set <key> <value>    Set a configuration value
  switchboard config get <key>            Get a configuration value
  switchboard config list                 List all configuration values

Examples:
  switchboard config set backend.mode gateway
  switchboard config set storage.sqlite_path ~/.switchboard/runs.db
  switchboard config get backend.url
  switchboard config list`

const configShortDesc string = "Manage persistent switchboard configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
