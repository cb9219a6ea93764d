// Package authcmder provides the auth command for storing backend tokens.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/credentials"
)

const authLongDesc string = `Store bearer tokens for orchestration backends.

Tokens are stored per backend host in credentials.toml in the
.switchboard/ directory (mode 0600) and sent as "Authorization: Bearer"
whenever no backend.api_key is configured.

Without an argument the token is stored for the backend the current
configuration points at (backend.url, or backend.gateway_url in gateway
mode).

Examples:
  switchboard auth                           Prompt for the active backend's token
  switchboard auth https://agents.internal   Prompt for a specific backend
  switchboard auth --list                    List backends with stored tokens
  switchboard auth --remove agents.internal  Remove a stored token
  echo $TOKEN | switchboard auth             Pipe the token from stdin`

const authShortDesc string = "Store bearer tokens for orchestration backends"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [backend-url]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			out := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(out, configDir)
			case removeFlag != "":
				return runRemove(out, removeFlag, configDir)
			}

			backend := ""
			if len(args) == 1 {
				backend = args[0]
			} else {
				cfg, err := stack.Load(cmd, stack.BackendFlags)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				backend = stack.ActiveURL(cfg.Backend)
			}
			if backend == "" {
				return errors.New("backend argument required: no backend URL is configured")
			}

			return runAuth(cmd.InOrStdin(), out, backend, configDir)
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List backends with stored tokens")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the stored token for a backend")
	stack.AddFlags(cmd, stack.BackendFlags)

	return cmd
}

func runAuth(in io.Reader, out io.Writer, backend, configDir string) error {
	host, err := credentials.HostKey(backend)
	if err != nil {
		return err
	}

	token, err := readToken(in, out, host)
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir, true)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetToken(backend, token); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored token for %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(host),
	)
	return nil
}

func runList(out io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir, false)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	hosts, err := mgr.ListBackends()
	if err != nil {
		return err
	}

	if len(hosts) == 0 {
		fmt.Fprintf(out, "\n  %s No stored tokens.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'switchboard auth [backend-url]' to store one.\n\n")
		return nil
	}

	fmt.Fprintln(out)
	for _, h := range hosts {
		fmt.Fprintf(out, "  %s  %s\n", cliui.SuccessMark, cliui.NameStyle.Render(h))
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, backend, configDir string) error {
	mgr, err := credentials.NewManager(configDir, false)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveToken(backend); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Removed token for %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(backend))

	return nil
}

// readToken reads a token from in. A terminal is prompted with hidden
// input; anything else contributes its first line.
func readToken(in io.Reader, out io.Writer, host string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter token for %s: ", host)

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
