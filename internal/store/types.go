package store

import (
	"fmt"
	"regexp"
)

// Node labels.
const (
	LabelWorkflow    = "Workflow"
	LabelStep        = "Step"
	LabelDocument    = "Document"
	LabelAgent       = "Agent"
	LabelWorkflowRun = "WorkflowRun"
	LabelStepRun     = "StepRun"
)

// Relationship types.
const (
	RelHasStep     = "HAS_STEP"
	RelFirstStep   = "FIRST_STEP"
	RelNeedsDoc    = "NEEDS_DOC"
	RelAssignedTo  = "ASSIGNED_TO"
	RelForWorkflow = "FOR_WORKFLOW"
	RelHasStepRun  = "HAS_STEP_RUN"
	RelForStep     = "FOR_STEP"
)

// Labels lists every label the schema knows about.
var Labels = []string{
	LabelWorkflow, LabelStep, LabelDocument, LabelAgent, LabelWorkflowRun, LabelStepRun,
}

// Props is the property bag of a node. Values are JSON-compatible scalars or
// string slices.
type Props map[string]any

// Node is a labelled vertex with a store-generated identity.
type Node struct {
	ID    string
	Label string
	Props Props
}

// Direction selects which end of a relationship the anchor node sits on.
type Direction int

const (
	// Outgoing follows (anchor)-[rel]->(n).
	Outgoing Direction = iota
	// Incoming follows (anchor)<-[rel]-(n).
	Incoming
)

// Op is a predicate comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpIn Op = "IN"
)

// Predicate filters nodes on a property. For OpIn, Value must be a slice.
type Predicate struct {
	Prop  string
	Op    Op
	Value any
}

// Eq, Ne and In build predicates.
func Eq(prop string, v any) Predicate     { return Predicate{Prop: prop, Op: OpEq, Value: v} }
func Ne(prop string, v any) Predicate     { return Predicate{Prop: prop, Op: OpNe, Value: v} }
func In(prop string, vs ...any) Predicate { return Predicate{Prop: prop, Op: OpIn, Value: vs} }

// Query selects nodes of one label.
type Query struct {
	Label   string
	Where   []Predicate
	OrderBy string
	Desc    bool
	Limit   int
}

// Match is a single-hop pattern anchored on a node identity.
type Match struct {
	From string
	Rel  string
	Dir  Direction
	Query
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdent guards names that end up interpolated into query text.
func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}

func (q Query) validate() error {
	if err := checkIdent("label", q.Label); err != nil {
		return err
	}
	for _, p := range q.Where {
		if err := checkIdent("property", p.Prop); err != nil {
			return err
		}
		switch p.Op {
		case OpEq, OpNe:
		case OpIn:
			if _, ok := p.Value.([]any); !ok {
				return fmt.Errorf("predicate %s IN expects []any, got %T", p.Prop, p.Value)
			}
		default:
			return fmt.Errorf("unsupported operator %q", p.Op)
		}
	}
	if q.OrderBy != "" {
		return checkIdent("property", q.OrderBy)
	}
	return nil
}

func (m Match) validate() error {
	if err := checkIdent("relationship type", m.Rel); err != nil {
		return err
	}
	return m.Query.validate()
}
