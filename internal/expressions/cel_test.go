package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

func newCEL(t *testing.T) *CELEngine {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	return e
}

func TestCEL_TransitionGuard(t *testing.T) {
	e := newCEL(t)
	guard := `!(from == "done" && to == "todo") || note != ""`

	cases := []struct {
		name string
		data map[string]any
		want bool
	}{
		{"forward", map[string]any{"from": "todo", "to": "in_progress"}, true},
		{"reopen without note", map[string]any{"from": "done", "to": "todo"}, false},
		{"reopen with note", map[string]any{"from": "done", "to": "todo", "note": "redo"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := e.EvaluateBool(context.Background(), guard, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCEL_StepVariables(t *testing.T) {
	e := newCEL(t)
	ok, err := e.EvaluateBool(context.Background(), `step.step_order > 1 && run.run_id == "r1"`, map[string]any{
		"step": map[string]any{"step_order": 2},
		"run":  map[string]any{"run_id": "r1"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCEL_MissingVariablesDefault(t *testing.T) {
	e := newCEL(t)
	out, err := e.Evaluate(context.Background(), `note == "" && size(step) == 0`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_CompileErrors(t *testing.T) {
	e := newCEL(t)

	err := e.Compile(`from ==`)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	err = e.Compile(`unknown_var == 1`)
	require.Error(t, err)

	err = e.Compile("")
	require.Error(t, err)
}

func TestCEL_NonBoolGuard(t *testing.T) {
	e := newCEL(t)
	_, err := e.EvaluateBool(context.Background(), `to + "!"`, map[string]any{"to": "done"})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_ConcurrentCache(t *testing.T) {
	e := newCEL(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.EvaluateBool(context.Background(), `to == "done"`, map[string]any{"to": "done"})
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Len(t, e.cache, 1)
}
