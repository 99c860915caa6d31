package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rendis/flowlite/pkg/schema"
)

// metrics holds the tracker's counters. Without an installed SDK the global
// provider is a no-op.
type metrics struct {
	runsStarted   metric.Int64Counter
	stepsAdvanced metric.Int64Counter
	runsCompleted metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	runsStarted, err := m.Int64Counter("flowlite.runs.started",
		metric.WithDescription("Workflow runs materialized"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("create runs.started counter: %w", err)
	}
	stepsAdvanced, err := m.Int64Counter("flowlite.steps.advanced",
		metric.WithDescription("Step run status changes"),
		metric.WithUnit("{step}"))
	if err != nil {
		return nil, fmt.Errorf("create steps.advanced counter: %w", err)
	}
	runsCompleted, err := m.Int64Counter("flowlite.runs.completed",
		metric.WithDescription("Workflow runs promoted to completed"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("create runs.completed counter: %w", err)
	}
	return &metrics{
		runsStarted:   runsStarted,
		stepsAdvanced: stepsAdvanced,
		runsCompleted: runsCompleted,
	}, nil
}

func (m *metrics) runStarted(ctx context.Context, workflowID string) {
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow_id", workflowID)))
}

func (m *metrics) stepAdvanced(ctx context.Context, status schema.StepStatus) {
	m.stepsAdvanced.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func (m *metrics) runCompleted(ctx context.Context, workflowID string) {
	m.runsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow_id", workflowID)))
}
