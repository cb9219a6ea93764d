package historycmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/logger"
	"github.com/papercomputeco/switchboard/pkg/recorder"
	"github.com/papercomputeco/switchboard/pkg/storage"
)

const showLongDesc string = `Replay the transcript of a recorded run.

Events are rendered the same way they were when the run streamed. With
--json the run and its raw events are printed as JSON instead.

Examples:
  switchboard history show 0b9f7c1e-3a52-4f7e-9d43-2b1f0f6f8d10
  switchboard history show 0b9f7c1e-3a52-4f7e-9d43-2b1f0f6f8d10 --json`

const showShortDesc string = "Replay a recorded run"

func newShowCmd() *cobra.Command {
	var (
		asJSON bool
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			log := logger.NewLogger(debug)
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			driver, err := openDriver(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer driver.Close()

			run, err := driver.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				events, err := driver.Events(ctx, run.ID)
				if err != nil {
					return err
				}
				return writeJSON(out, run, events)
			}

			printHeader(out, run)
			renderer := cliui.NewEventRenderer(out, !plain && cliui.IsTerminal(out))
			if err := recorder.Replay(ctx, driver, run.ID, renderer.Handle); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run and its events as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "Do not render final answers as markdown")
	stack.AddFlags(cmd, stack.StorageFlags)

	return cmd
}

func printHeader(w io.Writer, run *storage.Run) {
	fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render("Run:"), cliui.HashStyle.Render(run.ID))
	fmt.Fprintf(w, "  %s %s %s\n", cliui.KeyStyle.Render("Target:"), string(run.Kind), cliui.NameStyle.Render(run.TargetID))
	fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Started:"), cliui.DimStyle.Render(run.StartedAt.Local().Format("2006-01-02 15:04:05")))
	if run.Input != "" {
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Input:"), cliui.ValueStyle.Render(run.Input))
	}
	fmt.Fprintln(w)
}

func writeJSON(w io.Writer, run *storage.Run, events []*storage.RecordedEvent) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Run    *storage.Run             `json:"run"`
		Events []*storage.RecordedEvent `json:"events"`
	}{Run: run, Events: events})
}
