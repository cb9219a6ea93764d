// Package workflowcmder provides the workflow command for running workflows
// and previewing the steps of an editor graph.
package workflowcmder

import (
	"github.com/spf13/cobra"
)

const workflowLongDesc string = `Run workflows and inspect workflow graphs.

  switchboard workflow run <workflow-id>     Stream a workflow execution
  switchboard workflow plan <graph.json>     Print the steps of a graph`

const workflowShortDesc string = "Run and inspect workflows"

func NewWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: workflowShortDesc,
		Long:  workflowLongDesc,
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newPlanCmd())

	return cmd
}
