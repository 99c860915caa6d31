package store

import (
	"context"
	"strings"

	"github.com/rendis/flowlite/pkg/schema"
)

// Store is the property-graph persistence contract consumed by the catalog and
// the engine. Every unit of work runs inside Read or Write: the transaction is
// committed when fn returns nil and rolled back on error or panic.
// All implementations must be safe for concurrent use.
type Store interface {
	Read(ctx context.Context, fn func(tx Tx) error) error
	Write(ctx context.Context, fn func(tx Tx) error) error

	// Migrate creates the schema (tables or uniqueness constraints).
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the capability set available inside a transaction. Mutating methods
// fail on a read transaction.
type Tx interface {
	// CreateNode creates a node with a freshly generated identity.
	CreateNode(ctx context.Context, label string, props Props) (*Node, error)
	// CreateRel links two existing nodes. Creating the same link twice is a no-op.
	CreateRel(ctx context.Context, fromID, relType, toID string) error
	// Node fetches a node by label and identity. Unknown ids yield NOT_FOUND.
	Node(ctx context.Context, label, id string) (*Node, error)
	// Nodes scans nodes of q.Label.
	Nodes(ctx context.Context, q Query) ([]*Node, error)
	// Neighbors follows m.Rel from the anchor node in m.Dir and returns the
	// distinct far nodes matching m.Query.
	Neighbors(ctx context.Context, m Match) ([]*Node, error)
	// SetProps merges props into a node. A nil value removes the property.
	SetProps(ctx context.Context, label, id string, props Props) (*Node, error)
}

// kindOf maps a label to the entity kind reported in NOT_FOUND errors.
func kindOf(label string) string {
	switch label {
	case LabelWorkflowRun:
		return "workflow run"
	case LabelStepRun:
		return "step run"
	default:
		return strings.ToLower(label)
	}
}

// compactProps drops nil values; absent and null properties are equivalent.
func compactProps(p Props) Props {
	out := make(Props, len(p))
	for k, v := range p {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// mergeProps applies patch onto base in place. Nil values delete keys.
func mergeProps(base, patch Props) Props {
	if base == nil {
		base = Props{}
	}
	for k, v := range patch {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return base
}

func readOnlyErr(op string) error {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: write attempted in read transaction", op)
}
