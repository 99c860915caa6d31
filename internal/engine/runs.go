package engine

import (
	"context"

	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/pkg/schema"
)

// RunQuery selects runs for ListRuns. Empty fields match everything.
type RunQuery struct {
	WorkflowID string
	Status     schema.RunStatus
	// Filter is an expr predicate over id, workflow_id, status, started_at,
	// completed_at, total, todo, in_progress and done.
	Filter string
	Limit  int
}

// GetRun returns a run with its step runs in template order.
func (t *Tracker) GetRun(ctx context.Context, runID string) (*schema.RunDetail, error) {
	ctx = logging.WithRunID(ctx, runID)

	var detail *schema.RunDetail
	err := t.store.Read(ctx, func(tx store.Tx) error {
		n, err := tx.Node(ctx, store.LabelWorkflowRun, runID)
		if err != nil {
			return err
		}
		run, err := store.DecodeRun(n)
		if err != nil {
			return err
		}
		stepRuns, err := stepRunsOf(ctx, tx, runID)
		if err != nil {
			return err
		}
		detail = &schema.RunDetail{Run: *run, StepRuns: stepRuns}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListRuns returns run summaries, most recently started first.
func (t *Tracker) ListRuns(ctx context.Context, q RunQuery) ([]schema.RunSummary, error) {
	var where []store.Predicate
	if q.WorkflowID != "" {
		where = append(where, store.Eq("workflow_id", q.WorkflowID))
	}
	if q.Status != "" {
		status, err := schema.ParseRunStatus(string(q.Status))
		if err != nil {
			return nil, err
		}
		where = append(where, store.Eq("status", string(status)))
	}
	// The expr filter runs after the store query, so the store limit only
	// applies when there is no filter.
	storeLimit := q.Limit
	if q.Filter != "" {
		storeLimit = 0
		if err := t.filters.Compile(q.Filter); err != nil {
			return nil, err
		}
	}

	out := []schema.RunSummary{}
	err := t.store.Read(ctx, func(tx store.Tx) error {
		nodes, err := tx.Nodes(ctx, store.Query{
			Label: store.LabelWorkflowRun, Where: where,
			OrderBy: "started_at", Desc: true, Limit: storeLimit,
		})
		if err != nil {
			return err
		}
		for _, n := range nodes {
			run, err := store.DecodeRun(n)
			if err != nil {
				return err
			}
			stepRuns, err := stepRunsOf(ctx, tx, run.ID)
			if err != nil {
				return err
			}
			sum := summarize(*run, stepRuns)
			if q.Filter != "" {
				ok, err := t.filters.Match(q.Filter, sum)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			out = append(out, sum)
			if q.Limit > 0 && len(out) == q.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// stepRunsOf loads the step runs of a run ordered by seq.
func stepRunsOf(ctx context.Context, tx store.Tx, runID string) ([]schema.StepRun, error) {
	nodes, err := tx.Neighbors(ctx, store.Match{
		From: runID, Rel: store.RelHasStepRun,
		Query: store.Query{Label: store.LabelStepRun, OrderBy: "seq"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]schema.StepRun, 0, len(nodes))
	for _, n := range nodes {
		sr, err := store.DecodeStepRun(n)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, nil
}

func summarize(run schema.WorkflowRun, stepRuns []schema.StepRun) schema.RunSummary {
	s := schema.RunSummary{Run: run, Total: len(stepRuns)}
	for _, sr := range stepRuns {
		switch sr.Status {
		case schema.StepStatusTodo:
			s.Todo++
		case schema.StepStatusInProgress:
			s.InProgress++
		case schema.StepStatusDone:
			s.Done++
		}
	}
	return s
}
