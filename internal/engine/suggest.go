package engine

import (
	"context"

	"github.com/rendis/flowlite/internal/catalog"
	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/pkg/schema"
)

// SuggestDocuments returns the documents needed by the steps immediately
// before and after stepID in its workflow. Predecessor documents come first,
// then successor documents, each in link order, without duplicates. A step
// with no owning workflow yields an empty result. limit <= 0 uses the
// tracker's default.
func (t *Tracker) SuggestDocuments(ctx context.Context, stepID string, limit int) ([]schema.Document, error) {
	if limit <= 0 {
		limit = t.suggestLimit
	}
	ctx = logging.WithStepID(ctx, stepID)

	out := []schema.Document{}
	err := t.store.Read(ctx, func(tx store.Tx) error {
		step, err := catalog.Step(ctx, tx, stepID)
		if err != nil {
			return err
		}
		if step.WorkflowID == "" {
			return nil
		}
		siblings, err := catalog.StepsWithOrder(ctx, tx, step.WorkflowID, step.Order-1, step.Order+1)
		if err != nil {
			return err
		}

		seen := make(map[string]struct{})
		// siblings are sorted by order, so predecessors precede successors.
		for _, sib := range siblings {
			if sib.ID == stepID {
				continue
			}
			docs, err := catalog.StepDocuments(ctx, tx, sib.ID)
			if err != nil {
				return err
			}
			for _, d := range docs {
				if _, dup := seen[d.ID]; dup {
					continue
				}
				seen[d.ID] = struct{}{}
				out = append(out, *d)
				if len(out) == limit {
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.logger.DebugContext(ctx, "documents suggested")
	return out, nil
}
