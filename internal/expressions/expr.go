package expressions

import (
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/flowlite/pkg/schema"
)

// RunFilterEnv is the environment run filters are compiled against. Unknown
// identifiers are compile errors.
type RunFilterEnv struct {
	ID          string     `expr:"id"`
	WorkflowID  string     `expr:"workflow_id"`
	Status      string     `expr:"status"`
	StartedAt   time.Time  `expr:"started_at"`
	CompletedAt *time.Time `expr:"completed_at"`
	Total       int        `expr:"total"`
	Todo        int        `expr:"todo"`
	InProgress  int        `expr:"in_progress"`
	Done        int        `expr:"done"`
}

// NewRunFilterEnv flattens a run summary into filter variables.
func NewRunFilterEnv(s schema.RunSummary) RunFilterEnv {
	return RunFilterEnv{
		ID:          s.Run.ID,
		WorkflowID:  s.Run.WorkflowID,
		Status:      string(s.Run.Status),
		StartedAt:   s.Run.StartedAt,
		CompletedAt: s.Run.CompletedAt,
		Total:       s.Total,
		Todo:        s.Todo,
		InProgress:  s.InProgress,
		Done:        s.Done,
	}
}

// ExprEngine compiles run filters such as `status == "running" && done < total`
// with expr-lang/expr. Let bindings, array builtins, nil coalescing (??) and
// optional chaining (?.) are available.
// Thread-safe: compiled programs are cached per filter source.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEngine creates an empty filter engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{
		cache: make(map[string]*vm.Program),
	}
}

// Compile checks a filter without running it. Filters that reference unknown
// variables or do not yield a bool are a validation error.
func (e *ExprEngine) Compile(filter string) error {
	_, err := e.program(filter)
	return err
}

// Match reports whether the run summary satisfies filter.
func (e *ExprEngine) Match(filter string, sum schema.RunSummary) (bool, error) {
	prg, err := e.program(filter)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(prg, NewRunFilterEnv(sum))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"filter %q failed on run %s: %s", filter, sum.Run.ID, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": filter, "run_id": sum.Run.ID})
	}
	matched, _ := out.(bool)
	return matched, nil
}

func (e *ExprEngine) program(filter string) (*vm.Program, error) {
	if filter == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty filter expression")
	}

	e.mu.RLock()
	prg, ok := e.cache[filter]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[filter]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(filter, expr.Env(RunFilterEnv{}), expr.AsBool())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid filter %q: %s", filter, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": filter})
	}

	e.cache[filter] = prg
	return prg, nil
}
