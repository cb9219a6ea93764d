package workflowcmder

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/workflow"
)

const planLongDesc string = `Print the steps a workflow graph exported by the editor turns into.

Start and end nodes, and nodes without an agent, are skipped. Steps keep
the order of the nodes in the file; each lists the steps it depends on.

Examples:
  switchboard workflow plan ./pipeline.json`

const planShortDesc string = "Print the steps of a workflow graph"

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <graph.json>",
		Short: planShortDesc,
		Long:  planLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := loadSteps(args[0])
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), steps)
		},
	}

	return cmd
}

// loadSteps reads a graph file and converts it into steps.
func loadSteps(path string) ([]workflow.Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph: %w", err)
	}
	defer f.Close()

	graph, err := workflow.LoadGraph(f)
	if err != nil {
		return nil, err
	}

	return workflow.ToSteps(graph)
}

func printPlan(w io.Writer, steps []workflow.Step) error {
	if len(steps) == 0 {
		_, err := fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No agent steps in graph."))
		return err
	}

	fmt.Fprintln(w)
	for _, s := range steps {
		line := fmt.Sprintf("  %s %s %s",
			cliui.HashStyle.Render(fmt.Sprintf("%2d", s.Index)),
			cliui.NameStyle.Render(s.Name),
			cliui.DimStyle.Render("("+s.AgentID+")"),
		)
		if len(s.DependsOn) > 0 {
			deps := make([]string, 0, len(s.DependsOn))
			for _, d := range s.DependsOn {
				deps = append(deps, strconv.Itoa(d))
			}
			line += " " + cliui.KeyStyle.Render("after "+strings.Join(deps, ", "))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	return nil
}
