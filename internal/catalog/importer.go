package catalog

import (
	"context"
	"log/slog"

	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/validation"
	"github.com/rendis/flowlite/pkg/schema"
)

// Importer writes validated workflow templates into the graph.
type Importer struct {
	store     store.Store
	validator *validation.TemplateValidator
	logger    *slog.Logger
}

// NewImporter creates an Importer. logger may be nil.
func NewImporter(s store.Store, v *validation.TemplateValidator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Importer{store: s, validator: v, logger: logger}
}

// ImportJSON validates a raw template document and imports it.
func (im *Importer) ImportJSON(ctx context.Context, raw []byte) (*schema.ImportResult, error) {
	tpl, report := im.validator.Parse(raw)
	if !report.OK() {
		return nil, report.Err()
	}
	return im.write(ctx, tpl, report)
}

// Import validates an in-memory template and imports it.
func (im *Importer) Import(ctx context.Context, tpl *schema.WorkflowTemplate) (*schema.ImportResult, error) {
	report := im.validator.Validate(tpl)
	if !report.OK() {
		return nil, report.Err()
	}
	return im.write(ctx, tpl, report)
}

// write creates every node and relationship of the template in one
// transaction. FIRST_STEP points at the lowest-order step; ties go to the one
// declared first.
func (im *Importer) write(ctx context.Context, tpl *schema.WorkflowTemplate, report *schema.ValidationReport) (*schema.ImportResult, error) {
	res := &schema.ImportResult{
		Steps:     make(map[string]string, len(tpl.Steps)),
		Documents: make(map[string]string, len(tpl.Documents)),
		Agents:    make(map[string]string, len(tpl.Agents)),
		Warnings:  report.Warnings,
	}

	err := im.store.Write(ctx, func(tx store.Tx) error {
		wf := &schema.Workflow{Name: tpl.Name, Goal: tpl.Goal}
		wfNode, err := tx.CreateNode(ctx, store.LabelWorkflow, store.WorkflowProps(wf))
		if err != nil {
			return err
		}
		wf.ID = wfNode.ID

		for _, d := range tpl.Documents {
			n, err := tx.CreateNode(ctx, store.LabelDocument, store.DocumentProps(&schema.Document{
				Title: d.Title, URL: d.URL, Tags: d.Tags,
			}))
			if err != nil {
				return err
			}
			res.Documents[d.Key] = n.ID
		}
		for _, a := range tpl.Agents {
			kind, err := schema.ParseAgentKind(a.Kind)
			if err != nil {
				return err
			}
			n, err := tx.CreateNode(ctx, store.LabelAgent, store.AgentProps(&schema.Agent{Name: a.Name, Kind: kind}))
			if err != nil {
				return err
			}
			res.Agents[a.Key] = n.ID
		}

		first := -1
		for i, s := range tpl.Steps {
			n, err := tx.CreateNode(ctx, store.LabelStep, store.StepProps(&schema.Step{
				Name: s.Name, Order: s.Order, Description: s.Description,
			}))
			if err != nil {
				return err
			}
			res.Steps[s.Key] = n.ID
			if err := tx.CreateRel(ctx, wf.ID, store.RelHasStep, n.ID); err != nil {
				return err
			}
			for _, key := range s.Documents {
				if err := tx.CreateRel(ctx, n.ID, store.RelNeedsDoc, res.Documents[key]); err != nil {
					return err
				}
			}
			for _, key := range s.Agents {
				if err := tx.CreateRel(ctx, n.ID, store.RelAssignedTo, res.Agents[key]); err != nil {
					return err
				}
			}
			if first < 0 || s.Order < tpl.Steps[first].Order {
				first = i
			}
		}

		if first >= 0 {
			wf.FirstStepID = res.Steps[tpl.Steps[first].Key]
			if err := tx.CreateRel(ctx, wf.ID, store.RelFirstStep, wf.FirstStepID); err != nil {
				return err
			}
		}
		res.Workflow = *wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logging.WithWorkflowID(ctx, res.Workflow.ID)
	im.logger.InfoContext(ctx, "template imported",
		slog.String("name", tpl.Name),
		slog.Int("steps", len(res.Steps)),
		slog.Int("documents", len(res.Documents)),
		slog.Int("agents", len(res.Agents)),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}
