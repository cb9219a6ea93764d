package orchestrator

import "github.com/papercomputeco/switchboard/pkg/workflow"

// StepsFromWorkflow converts editor graph steps into request steps.
func StepsFromWorkflow(steps []workflow.Step) []WorkflowStep {
	if len(steps) == 0 {
		return nil
	}

	out := make([]WorkflowStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, WorkflowStep{
			AgentID:   s.AgentID,
			Name:      s.Name,
			DependsOn: s.DependsOn,
			Config:    s.Config,
		})
	}
	return out
}
