package engine

import (
	"context"
	"log/slog"

	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/streaming"
	"github.com/rendis/flowlite/pkg/schema"
)

// CompletionResult reports the run after TryCompleteRun and whether this call
// promoted it.
type CompletionResult struct {
	Run     schema.WorkflowRun `json:"run"`
	Changed bool               `json:"changed"`
}

// TryCompleteRun marks a running run completed when it has at least one step
// run and every step run is done. It is idempotent and never demotes a
// completed run.
func (t *Tracker) TryCompleteRun(ctx context.Context, runID string) (*CompletionResult, error) {
	ctx = logging.WithRunID(ctx, runID)

	var res CompletionResult
	err := t.store.Write(ctx, func(tx store.Tx) error {
		n, err := tx.Node(ctx, store.LabelWorkflowRun, runID)
		if err != nil {
			return err
		}
		run, err := store.DecodeRun(n)
		if err != nil {
			return err
		}
		res.Run = *run

		stepRuns, err := stepRunsOf(ctx, tx, runID)
		if err != nil {
			return err
		}
		if !allDone(stepRuns) || !canTransitionRun(run.Status, schema.RunStatusCompleted) {
			return nil
		}

		completedAt := t.now()
		run.Status = schema.RunStatusCompleted
		run.CompletedAt = &completedAt
		if _, err := tx.SetProps(ctx, store.LabelWorkflowRun, runID, store.RunProps(run)); err != nil {
			return err
		}
		res.Run = *run
		res.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logging.WithWorkflowID(ctx, res.Run.WorkflowID)
	if !res.Changed {
		t.logger.DebugContext(ctx, "run not completed", slog.String("status", string(res.Run.Status)))
		return &res, nil
	}
	t.metrics.runCompleted(ctx, res.Run.WorkflowID)
	t.logger.InfoContext(ctx, "run completed")
	t.publish(ctx, streaming.StreamEvent{
		EventType:  schema.EventRunCompleted,
		WorkflowID: res.Run.WorkflowID,
		RunID:      runID,
		Payload:    res.Run,
	})
	return &res, nil
}

// allDone reports whether the distinct status set of stepRuns is exactly
// {done}. An empty set is never complete.
func allDone(stepRuns []schema.StepRun) bool {
	if len(stepRuns) == 0 {
		return false
	}
	for _, sr := range stepRuns {
		if !sr.Status.Terminal() {
			return false
		}
	}
	return true
}
