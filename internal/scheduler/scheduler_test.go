package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/internal/catalog"
	"github.com/rendis/flowlite/internal/engine"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/validation"
	"github.com/rendis/flowlite/pkg/schema"
)

// fakeRuns is a RunCompleter with scripted failures.
type fakeRuns struct {
	mu        sync.Mutex
	summaries []schema.RunSummary
	failures  map[string]int // run ID -> transient failures before success
	calls     map[string]int
	lists     int
}

func (f *fakeRuns) ListRuns(_ context.Context, q engine.RunQuery) ([]schema.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []schema.RunSummary
	for _, s := range f.summaries {
		if q.Status == "" || s.Run.Status == q.Status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRuns) TryCompleteRun(_ context.Context, runID string) (*engine.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[runID]++
	if f.failures[runID] > 0 {
		f.failures[runID]--
		return nil, schema.NewError(schema.ErrCodeStoreUnavailable, "database is locked")
	}
	for i, s := range f.summaries {
		if s.Run.ID == runID {
			changed := s.Run.Status == schema.RunStatusRunning
			f.summaries[i].Run.Status = schema.RunStatusCompleted
			return &engine.CompletionResult{Run: f.summaries[i].Run, Changed: changed}, nil
		}
	}
	return nil, schema.NotFound("workflow run", runID)
}

func (f *fakeRuns) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func summary(id string, total, done int) schema.RunSummary {
	return schema.RunSummary{
		Run:   schema.WorkflowRun{ID: id, Status: schema.RunStatusRunning},
		Total: total, Done: done, Todo: total - done,
	}
}

var fastPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, Backoff: "constant"}

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	_, err := NewSweeper(&fakeRuns{}, "not a schedule", fastPolicy, nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"*/5 * * * *", "@every 30s", "@hourly"} {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}
}

func TestSweepOnce(t *testing.T) {
	f := &fakeRuns{
		summaries: []schema.RunSummary{
			summary("ready", 3, 3),
			summary("busy", 3, 1),
			summary("empty", 0, 0),
		},
		failures: map[string]int{},
		calls:    map[string]int{},
	}
	sw, err := NewSweeper(f, "", fastPolicy, nil)
	require.NoError(t, err)

	res, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, []string{"ready"}, res.Completed)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 1, f.calls["ready"])
	assert.Zero(t, f.calls["busy"])
	assert.Zero(t, f.calls["empty"])

	res, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Completed)
}

func TestSweepOnce_RetriesTransientFailures(t *testing.T) {
	f := &fakeRuns{
		summaries: []schema.RunSummary{summary("flaky", 1, 1), summary("down", 1, 1)},
		failures:  map[string]int{"flaky": 2, "down": 10},
		calls:     map[string]int{},
	}
	sw, err := NewSweeper(f, "", fastPolicy, nil)
	require.NoError(t, err)

	res, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"flaky"}, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, f.calls["flaky"])
	assert.Equal(t, 3, f.calls["down"])
}

func TestSweeper_StartStop(t *testing.T) {
	f := &fakeRuns{failures: map[string]int{}, calls: map[string]int{}}
	sw, err := NewSweeper(f, "@every 1h", fastPolicy, nil)
	require.NoError(t, err)

	require.NoError(t, sw.Start(context.Background()))
	assert.Error(t, sw.Start(context.Background()))

	assert.Eventually(t, func() bool { return f.listCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, sw.Stop())
	require.NoError(t, sw.Stop())
}

func TestSweeper_CompletesTrackedRuns(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	v, err := validation.NewTemplateValidator()
	require.NoError(t, err)
	tpl, err := catalog.NewImporter(s, v, nil).Import(ctx, &schema.WorkflowTemplate{
		Name: "Two steps",
		Steps: []schema.StepTemplate{
			{Key: "a", Name: "A", Order: 1},
			{Key: "b", Name: "B", Order: 2},
		},
	})
	require.NoError(t, err)

	tr, err := engine.NewTracker(s, engine.Options{})
	require.NoError(t, err)
	finished, err := tr.StartRun(ctx, tpl.Workflow.ID)
	require.NoError(t, err)
	pending, err := tr.StartRun(ctx, tpl.Workflow.ID)
	require.NoError(t, err)
	for _, sr := range finished.StepRuns {
		_, err := tr.AdvanceStep(ctx, sr.ID, schema.StepStatusDone, nil)
		require.NoError(t, err)
	}

	sw, err := NewSweeper(tr, "", fastPolicy, nil)
	require.NoError(t, err)
	res, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{finished.Run.ID}, res.Completed)

	got, err := tr.GetRun(ctx, pending.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusRunning, got.Run.Status)
}
