package engine

import (
	"context"
	"log/slog"

	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/streaming"
	"github.com/rendis/flowlite/pkg/schema"
)

// AdvanceStep sets the status of a step run and replaces its note. A nil note
// clears any existing one. The owning run is never modified; completion is
// inferred separately by TryCompleteRun.
func (t *Tracker) AdvanceStep(ctx context.Context, stepRunID string, newStatus schema.StepStatus, note *string) (*schema.StepRun, error) {
	status, err := schema.ParseStepStatus(string(newStatus))
	if err != nil {
		return nil, err
	}
	ctx = logging.WithStepRunID(ctx, stepRunID)

	var (
		updated    *schema.StepRun
		from       schema.StepStatus
		workflowID string
	)
	err = t.store.Write(ctx, func(tx store.Tx) error {
		n, err := tx.Node(ctx, store.LabelStepRun, stepRunID)
		if err != nil {
			return err
		}
		current, err := store.DecodeStepRun(n)
		if err != nil {
			return err
		}
		from = current.Status

		if err := t.guard.Check(ctx, Transition{StepRun: *current, To: status, Note: note}); err != nil {
			return err
		}

		patch := store.Props{"status": string(status), "note": nil}
		if note != nil {
			patch["note"] = *note
		}
		n, err = tx.SetProps(ctx, store.LabelStepRun, stepRunID, patch)
		if err != nil {
			return err
		}
		if updated, err = store.DecodeStepRun(n); err != nil {
			return err
		}

		if current.RunID != "" {
			rn, err := tx.Node(ctx, store.LabelWorkflowRun, current.RunID)
			if err != nil && !schema.IsCode(err, schema.ErrCodeNotFound) {
				return err
			}
			if rn != nil {
				run, err := store.DecodeRun(rn)
				if err != nil {
					return err
				}
				workflowID = run.WorkflowID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logging.WithRunID(logging.WithWorkflowID(ctx, workflowID), updated.RunID)
	t.metrics.stepAdvanced(ctx, status)
	t.logger.InfoContext(ctx, "step advanced",
		slog.String("step_name", updated.StepName),
		slog.String("from", string(from)),
		slog.String("to", string(status)))
	t.publish(ctx, streaming.StreamEvent{
		EventType:  schema.EventStepAdvanced,
		WorkflowID: workflowID,
		RunID:      updated.RunID,
		StepRunID:  updated.ID,
		Payload:    updated,
	})
	return updated, nil
}
