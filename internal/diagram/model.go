package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindStep  NodeKind = "step"
	NodeKindStart NodeKind = "start"
	NodeKindEnd   NodeKind = "end"
)

const (
	startID = "__start__"
	endID   = "__end__"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
	// Levels groups node IDs by step order, with the virtual start and end
	// nodes on their own levels.
	Levels [][]string
}

// Node represents a single step in the diagram.
type Node struct {
	ID        string
	Label     string
	Kind      NodeKind
	Order     int
	Documents []string
	Agents    []string
	Status    *StatusOverlay
}

// StatusOverlay carries the progress of the step inside a run.
type StatusOverlay struct {
	Status string // from schema.StepStatus
	Note   string
}

// Edge connects a step to the steps of the next order.
type Edge struct {
	From  string
	To    string
	Label string
}

func (m *DiagramModel) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
