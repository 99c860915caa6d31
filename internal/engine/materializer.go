package engine

import (
	"context"
	"log/slog"

	"github.com/rendis/flowlite/internal/catalog"
	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/streaming"
	"github.com/rendis/flowlite/pkg/schema"
)

// StartRun materializes a new run of a workflow: one WorkflowRun plus one
// todo StepRun per step, in template order. Everything is written in a single
// transaction; a workflow without steps is rejected before any write.
func (t *Tracker) StartRun(ctx context.Context, workflowID string) (*schema.RunDetail, error) {
	ctx = logging.WithWorkflowID(ctx, workflowID)

	var detail *schema.RunDetail
	err := t.store.Write(ctx, func(tx store.Tx) error {
		if _, err := catalog.Workflow(ctx, tx, workflowID); err != nil {
			return err
		}
		steps, err := catalog.Steps(ctx, tx, workflowID)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return schema.NewErrorf(schema.ErrCodeInvalidPrecondition,
				"workflow %s has no steps", workflowID).
				WithDetails(map[string]any{"workflow_id": workflowID})
		}

		run := schema.WorkflowRun{
			WorkflowID: workflowID,
			Status:     schema.RunStatusRunning,
			StartedAt:  t.now(),
		}
		runNode, err := tx.CreateNode(ctx, store.LabelWorkflowRun, store.RunProps(&run))
		if err != nil {
			return err
		}
		run.ID = runNode.ID
		if err := tx.CreateRel(ctx, run.ID, store.RelForWorkflow, workflowID); err != nil {
			return err
		}

		stepRuns := make([]schema.StepRun, 0, len(steps))
		for i, step := range steps {
			sr := schema.StepRun{
				RunID:     run.ID,
				StepID:    step.ID,
				Seq:       i,
				StepName:  step.Name,
				StepOrder: step.Order,
				Status:    schema.StepStatusTodo,
			}
			n, err := tx.CreateNode(ctx, store.LabelStepRun, store.StepRunProps(&sr))
			if err != nil {
				return err
			}
			sr.ID = n.ID
			if err := tx.CreateRel(ctx, sr.ID, store.RelForStep, step.ID); err != nil {
				return err
			}
			if err := tx.CreateRel(ctx, run.ID, store.RelHasStepRun, sr.ID); err != nil {
				return err
			}
			stepRuns = append(stepRuns, sr)
		}

		detail = &schema.RunDetail{Run: run, StepRuns: stepRuns}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logging.WithRunID(ctx, detail.Run.ID)
	t.metrics.runStarted(ctx, workflowID)
	t.logger.InfoContext(ctx, "run started", slog.Int("steps", len(detail.StepRuns)))
	t.publish(ctx, streaming.StreamEvent{
		EventType:  schema.EventRunStarted,
		WorkflowID: workflowID,
		RunID:      detail.Run.ID,
		Payload:    detail,
	})
	return detail, nil
}
