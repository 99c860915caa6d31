package catalog

import (
	"context"

	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/pkg/schema"
)

// Reader gives read-only access to workflow templates.
type Reader struct {
	store store.Store
}

// NewReader creates a Reader over s.
func NewReader(s store.Store) *Reader {
	return &Reader{store: s}
}

// GetWorkflow returns a workflow by id.
func (r *Reader) GetWorkflow(ctx context.Context, id string) (*schema.Workflow, error) {
	var wf *schema.Workflow
	err := r.store.Read(ctx, func(tx store.Tx) error {
		var err error
		wf, err = Workflow(ctx, tx, id)
		return err
	})
	return wf, err
}

// ListWorkflows returns every workflow sorted by name.
func (r *Reader) ListWorkflows(ctx context.Context) ([]*schema.Workflow, error) {
	var out []*schema.Workflow
	err := r.store.Read(ctx, func(tx store.Tx) error {
		nodes, err := tx.Nodes(ctx, store.Query{Label: store.LabelWorkflow, OrderBy: "name"})
		if err != nil {
			return err
		}
		out = make([]*schema.Workflow, 0, len(nodes))
		for _, n := range nodes {
			wf, err := store.DecodeWorkflow(n)
			if err != nil {
				return err
			}
			out = append(out, wf)
		}
		return nil
	})
	return out, err
}

// Describe returns a workflow with its ordered steps and, per step, the
// documents it needs and the agents assigned to it.
func (r *Reader) Describe(ctx context.Context, workflowID string) (*schema.WorkflowDetail, error) {
	var detail *schema.WorkflowDetail
	err := r.store.Read(ctx, func(tx store.Tx) error {
		wf, err := Workflow(ctx, tx, workflowID)
		if err != nil {
			return err
		}
		steps, err := Steps(ctx, tx, workflowID)
		if err != nil {
			return err
		}
		detail = &schema.WorkflowDetail{Workflow: *wf, Steps: make([]schema.StepDetail, 0, len(steps))}
		for _, s := range steps {
			docs, err := StepDocuments(ctx, tx, s.ID)
			if err != nil {
				return err
			}
			agents, err := StepAgents(ctx, tx, s.ID)
			if err != nil {
				return err
			}
			sd := schema.StepDetail{
				Step:      *s,
				Documents: make([]schema.Document, 0, len(docs)),
				Agents:    make([]schema.Agent, 0, len(agents)),
			}
			for _, d := range docs {
				sd.Documents = append(sd.Documents, *d)
			}
			for _, a := range agents {
				sd.Agents = append(sd.Agents, *a)
			}
			detail.Steps = append(detail.Steps, sd)
		}
		return nil
	})
	return detail, err
}
