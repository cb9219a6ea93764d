package historycmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/logger"
	"github.com/papercomputeco/switchboard/pkg/storage"
	"github.com/papercomputeco/switchboard/pkg/utils"
)

const listShortDesc string = "List recent runs"

func newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			log := logger.NewLogger(debug)
			defer func() { _ = log.Sync() }()

			driver, err := openDriver(cmd.Context(), cmd, log)
			if err != nil {
				return err
			}
			defer driver.Close()

			runs, err := driver.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	stack.AddFlags(cmd, stack.StorageFlags)

	return cmd
}

func printRuns(w io.Writer, runs []*storage.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No runs recorded."))
		return err
	}

	fmt.Fprintln(w)
	for _, r := range runs {
		fmt.Fprintf(w, "  %s  %s  %-8s %s  %s\n",
			cliui.HashStyle.Render(r.ID),
			cliui.DimStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04:05")),
			string(r.Kind),
			cliui.NameStyle.Render(r.TargetID),
			cliui.ValueStyle.Render(utils.Truncate(r.Input, 60)),
		)
	}
	fmt.Fprintln(w)

	return nil
}
