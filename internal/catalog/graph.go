package catalog

import (
	"context"

	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/pkg/schema"
)

// Transaction-scoped lookups. The engine calls these inside its own
// transactions so that template reads and run writes share one snapshot.

// Workflow resolves a workflow and its FIRST_STEP link.
func Workflow(ctx context.Context, tx store.Tx, id string) (*schema.Workflow, error) {
	n, err := tx.Node(ctx, store.LabelWorkflow, id)
	if err != nil {
		return nil, err
	}
	wf, err := store.DecodeWorkflow(n)
	if err != nil {
		return nil, err
	}
	first, err := tx.Neighbors(ctx, store.Match{
		From: id, Rel: store.RelFirstStep,
		Query: store.Query{Label: store.LabelStep, Limit: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(first) > 0 {
		wf.FirstStepID = first[0].ID
	}
	return wf, nil
}

// Steps returns the steps of a workflow sorted by ascending order. Steps that
// share an order keep the backend's tie ordering.
func Steps(ctx context.Context, tx store.Tx, workflowID string) ([]*schema.Step, error) {
	return stepsWhere(ctx, tx, workflowID, nil)
}

// StepsWithOrder returns the steps of a workflow whose order is one of orders.
func StepsWithOrder(ctx context.Context, tx store.Tx, workflowID string, orders ...int) ([]*schema.Step, error) {
	vs := make([]any, len(orders))
	for i, o := range orders {
		vs[i] = o
	}
	return stepsWhere(ctx, tx, workflowID, []store.Predicate{store.In("order", vs...)})
}

func stepsWhere(ctx context.Context, tx store.Tx, workflowID string, where []store.Predicate) ([]*schema.Step, error) {
	nodes, err := tx.Neighbors(ctx, store.Match{
		From: workflowID, Rel: store.RelHasStep,
		Query: store.Query{Label: store.LabelStep, Where: where, OrderBy: "order"},
	})
	if err != nil {
		return nil, err
	}
	steps := make([]*schema.Step, 0, len(nodes))
	for _, n := range nodes {
		s, err := store.DecodeStep(n)
		if err != nil {
			return nil, err
		}
		s.WorkflowID = workflowID
		steps = append(steps, s)
	}
	return steps, nil
}

// Step resolves a step together with its owning workflow id. A step with no
// owning workflow has an empty WorkflowID.
func Step(ctx context.Context, tx store.Tx, id string) (*schema.Step, error) {
	n, err := tx.Node(ctx, store.LabelStep, id)
	if err != nil {
		return nil, err
	}
	s, err := store.DecodeStep(n)
	if err != nil {
		return nil, err
	}
	owners, err := tx.Neighbors(ctx, store.Match{
		From: id, Rel: store.RelHasStep, Dir: store.Incoming,
		Query: store.Query{Label: store.LabelWorkflow, Limit: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(owners) > 0 {
		s.WorkflowID = owners[0].ID
	}
	return s, nil
}

// StepDocuments returns the documents a step needs, distinct, in link order.
func StepDocuments(ctx context.Context, tx store.Tx, stepID string) ([]*schema.Document, error) {
	nodes, err := tx.Neighbors(ctx, store.Match{
		From: stepID, Rel: store.RelNeedsDoc,
		Query: store.Query{Label: store.LabelDocument},
	})
	if err != nil {
		return nil, err
	}
	docs := make([]*schema.Document, 0, len(nodes))
	for _, n := range nodes {
		d, err := store.DecodeDocument(n)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// StepAgents returns the agents assigned to a step.
func StepAgents(ctx context.Context, tx store.Tx, stepID string) ([]*schema.Agent, error) {
	nodes, err := tx.Neighbors(ctx, store.Match{
		From: stepID, Rel: store.RelAssignedTo,
		Query: store.Query{Label: store.LabelAgent},
	})
	if err != nil {
		return nil, err
	}
	agents := make([]*schema.Agent, 0, len(nodes))
	for _, n := range nodes {
		a, err := store.DecodeAgent(n)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}
