// Package workflow converts workflow graphs exported by the visual editor
// into the ordered step list accepted by the backend.
package workflow

import (
	"encoding/json"
	"fmt"
	"io"
)

// Node types that mark the boundaries of a graph rather than doing work.
const (
	NodeTypeStart = "start"
	NodeTypeEnd   = "end"
	NodeTypeAgent = "agent"
)

// Graph is the editor's export of a workflow.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one box on the canvas.
type Node struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data NodeData `json:"data"`
}

// NodeData holds the agent binding of a node.
type NodeData struct {
	AgentID string         `json:"agent_id,omitempty"`
	Label   string         `json:"label,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// Edge connects the output of Source to the input of Target.
type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Step is an executable unit derived from an agent node.
type Step struct {
	Index     int            `json:"index"`
	NodeID    string         `json:"node_id"`
	AgentID   string         `json:"agent_id"`
	Name      string         `json:"name"`
	DependsOn []int          `json:"depends_on,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// LoadGraph decodes an editor export.
func LoadGraph(r io.Reader) (Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("decoding workflow graph: %w", err)
	}
	return g, nil
}

// isStep reports whether n becomes a step.
func isStep(n Node) bool {
	if n.Type == NodeTypeStart || n.Type == NodeTypeEnd {
		return false
	}
	return n.Data.AgentID != ""
}

// ToSteps flattens g into steps in node order. Step dependencies are the
// step indices of the sources of each node's incoming edges; edges from
// boundary nodes carry no dependency.
//
// Nodes are taken in the order they appear. There is no topological sort,
// so a graph whose edges point backwards produces a step depending on a
// later index.
func ToSteps(g Graph) ([]Step, error) {
	known := make(map[string]bool, len(g.Nodes))
	stepIndex := make(map[string]int, len(g.Nodes))

	var steps []Step
	for _, n := range g.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("workflow node without id")
		}
		if known[n.ID] {
			return nil, fmt.Errorf("duplicate workflow node %q", n.ID)
		}
		known[n.ID] = true

		if !isStep(n) {
			continue
		}

		name := n.Data.Label
		if name == "" {
			name = n.Data.AgentID
		}

		stepIndex[n.ID] = len(steps)
		steps = append(steps, Step{
			Index:   len(steps),
			NodeID:  n.ID,
			AgentID: n.Data.AgentID,
			Name:    name,
			Config:  n.Data.Config,
		})
	}

	for _, e := range g.Edges {
		if !known[e.Source] {
			return nil, fmt.Errorf("edge %q: unknown source node %q", e.ID, e.Source)
		}
		if !known[e.Target] {
			return nil, fmt.Errorf("edge %q: unknown target node %q", e.ID, e.Target)
		}

		to, ok := stepIndex[e.Target]
		if !ok {
			continue
		}
		from, ok := stepIndex[e.Source]
		if !ok {
			continue
		}

		if !containsInt(steps[to].DependsOn, from) {
			steps[to].DependsOn = append(steps[to].DependsOn, from)
		}
	}

	return steps, nil
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
