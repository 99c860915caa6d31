package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/rendis/flowlite/internal/expressions"
	"github.com/rendis/flowlite/pkg/schema"
)

// Transition describes a requested step run status change.
type Transition struct {
	StepRun schema.StepRun // state before the change
	To      schema.StepStatus
	Note    *string
}

// From returns the current status of the step run.
func (t Transition) From() schema.StepStatus { return t.StepRun.Status }

// TransitionGuard decides whether a step run may move to a new status.
// A non-nil error aborts the advance before anything is written.
type TransitionGuard interface {
	Check(ctx context.Context, t Transition) error
}

// PermissiveGuard allows every transition, including moves back to todo.
type PermissiveGuard struct{}

func (PermissiveGuard) Check(context.Context, Transition) error { return nil }

// TableGuard allows only the transitions listed in the table. Re-applying the
// current status (for example to edit the note) is always allowed.
type TableGuard map[schema.StepStatus][]schema.StepStatus

func (g TableGuard) Check(_ context.Context, t Transition) error {
	if t.From() == t.To || slices.Contains(g[t.From()], t.To) {
		return nil
	}
	return invalidTransition(t, "transition not allowed")
}

// StrictStepTransitions forbids skipping in_progress and resetting a done step to todo.
var StrictStepTransitions = TableGuard{
	schema.StepStatusTodo:       {schema.StepStatusInProgress},
	schema.StepStatusInProgress: {schema.StepStatusTodo, schema.StepStatusDone},
	schema.StepStatusDone:       {schema.StepStatusInProgress},
}

// CELGuard allows a transition when a CEL expression over from, to, note,
// step and run evaluates to true.
type CELGuard struct {
	engine     *expressions.CELEngine
	expression string
}

// NewCELGuard compiles expression up front so configuration errors surface early.
func NewCELGuard(engine *expressions.CELEngine, expression string) (*CELGuard, error) {
	if err := engine.Compile(expression); err != nil {
		return nil, err
	}
	return &CELGuard{engine: engine, expression: expression}, nil
}

func (g *CELGuard) Check(ctx context.Context, t Transition) error {
	note := ""
	if t.Note != nil {
		note = *t.Note
	}
	ok, err := g.engine.EvaluateBool(ctx, g.expression, map[string]any{
		"from": string(t.From()),
		"to":   string(t.To),
		"note": note,
		"step": map[string]any{
			"step_id":    t.StepRun.StepID,
			"step_name":  t.StepRun.StepName,
			"step_order": t.StepRun.StepOrder,
			"seq":        t.StepRun.Seq,
		},
		"run": map[string]any{"run_id": t.StepRun.RunID},
	})
	if err != nil {
		return err
	}
	if !ok {
		return invalidTransition(t, "rejected by guard "+g.expression)
	}
	return nil
}

// ParseGuard builds a guard from its configured form: "" or "permissive",
// "strict", or any other string as a CEL expression.
func ParseGuard(spec string, engine *expressions.CELEngine) (TransitionGuard, error) {
	switch strings.TrimSpace(strings.ToLower(spec)) {
	case "", "permissive":
		return PermissiveGuard{}, nil
	case "strict":
		return StrictStepTransitions, nil
	}
	if engine == nil {
		var err error
		if engine, err = expressions.NewCELEngine(); err != nil {
			return nil, err
		}
	}
	return NewCELGuard(engine, spec)
}

func invalidTransition(t Transition, reason string) error {
	return schema.NewErrorf(schema.ErrCodeInvalidTransition,
		"invalid step transition: %s -> %s: %s", t.From(), t.To, reason).
		WithDetails(map[string]any{
			"step_run_id": t.StepRun.ID,
			"from":        string(t.From()),
			"to":          string(t.To),
		})
}

// ValidRunTransitions defines the allowed run status transitions. Completed
// is terminal.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusRunning:   {schema.RunStatusCompleted},
	schema.RunStatusCompleted: {},
}

func canTransitionRun(from, to schema.RunStatus) bool {
	return slices.Contains(ValidRunTransitions[from], to)
}
