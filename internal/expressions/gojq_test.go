package expressions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

func TestGoJQ_QueryStructs(t *testing.T) {
	e := NewGoJQEngine()
	detail := schema.RunDetail{
		Run: schema.WorkflowRun{ID: "r1", Status: schema.RunStatusRunning, StartedAt: time.Unix(0, 0).UTC()},
		StepRuns: []schema.StepRun{
			{ID: "a", StepName: "Welcome", Seq: 0, Status: schema.StepStatusDone},
			{ID: "b", StepName: "Setup", Seq: 1, Status: schema.StepStatusTodo},
		},
	}

	out, err := e.Query(context.Background(), `[.step_runs[] | select(.status != "done") | .step_name]`, detail)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []any{"Setup"}, out[0])

	out, err = e.Query(context.Background(), `.step_runs[].seq`, detail)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(0), float64(1)}, out)
}

func TestGoJQ_QueryOutputs(t *testing.T) {
	e := NewGoJQEngine()
	ctx := context.Background()

	out, err := e.Query(ctx, `.name`, map[string]any{"name": "Onboarding"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Onboarding"}, out)

	out, err = e.Query(ctx, `empty`, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = e.Query(ctx, `.xs[]`, map[string]any{"xs": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQ_Errors(t *testing.T) {
	e := NewGoJQEngine()
	ctx := context.Background()

	_, err := e.Query(ctx, `.[`, map[string]any{})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Query(ctx, `error("boom")`, map[string]any{})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))

	_, err = e.Query(ctx, "", map[string]any{})
	require.Error(t, err)

	_, err = e.Query(ctx, `.`, make(chan int))
	require.Error(t, err)
}

func TestGoJQ_EnvSandboxed(t *testing.T) {
	t.Setenv("FLOWLITE_SECRET", "hunter2")
	out, err := NewGoJQEngine().Query(context.Background(), `$ENV.FLOWLITE_SECRET`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, out)
}
