package diagram

import (
	"fmt"

	"github.com/rendis/flowlite/pkg/schema"
)

// Build constructs a DiagramModel from a described workflow. When run is not
// nil its step runs are overlaid on the matching steps.
func Build(detail *schema.WorkflowDetail, run *schema.RunDetail) (*DiagramModel, error) {
	if detail == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "diagram: workflow is required")
	}
	if run != nil && run.Run.WorkflowID != detail.Workflow.ID {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"diagram: run %s belongs to workflow %s, not %s", run.Run.ID, run.Run.WorkflowID, detail.Workflow.ID)
	}

	states := make(map[string]schema.StepRun)
	if run != nil {
		for _, sr := range run.StepRuns {
			states[sr.StepID] = sr
		}
	}

	nodes := make([]*Node, 0, len(detail.Steps)+2)
	nodes = append(nodes, &Node{ID: startID, Label: "Start", Kind: NodeKindStart})

	levels := [][]string{{startID}}
	for _, sd := range detail.Steps {
		node := stepToNode(sd)
		if sr, ok := states[sd.Step.ID]; ok {
			node.Status = overlay(sr)
		}
		nodes = append(nodes, node)

		// Steps arrive sorted by order, so ties extend the current level.
		last := len(levels) - 1
		if last > 0 && nodes[len(nodes)-2].Order == node.Order {
			levels[last] = append(levels[last], node.ID)
		} else {
			levels = append(levels, []string{node.ID})
		}
	}

	nodes = append(nodes, &Node{ID: endID, Label: "End", Kind: NodeKindEnd})
	levels = append(levels, []string{endID})

	return &DiagramModel{
		Title:  title(detail, run),
		Nodes:  nodes,
		Edges:  buildEdges(levels),
		Levels: levels,
	}, nil
}

func stepToNode(sd schema.StepDetail) *Node {
	n := &Node{
		ID:    sd.Step.ID,
		Label: sd.Step.Name,
		Kind:  NodeKindStep,
		Order: sd.Step.Order,
	}
	for _, d := range sd.Documents {
		n.Documents = append(n.Documents, d.Title)
	}
	for _, a := range sd.Agents {
		n.Agents = append(n.Agents, a.Name)
	}
	return n
}

func overlay(sr schema.StepRun) *StatusOverlay {
	o := &StatusOverlay{Status: string(sr.Status)}
	if sr.Note != nil {
		o.Note = *sr.Note
	}
	return o
}

// buildEdges links every node of a level to every node of the next one.
func buildEdges(levels [][]string) []Edge {
	var edges []Edge
	for i := 0; i+1 < len(levels); i++ {
		for _, from := range levels[i] {
			for _, to := range levels[i+1] {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	return edges
}

func title(detail *schema.WorkflowDetail, run *schema.RunDetail) string {
	name := detail.Workflow.Name
	if name == "" {
		name = "Workflow"
	}
	if run == nil {
		return name
	}
	return fmt.Sprintf("%s (run %s, %s)", name, run.Run.ID, run.Run.Status)
}
