package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/rendis/flowlite/internal/expressions"
	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/streaming"
)

// DefaultSuggestLimit caps SuggestDocuments when the caller passes no limit.
const DefaultSuggestLimit = 5

const instrumentationName = "github.com/rendis/flowlite/internal/engine"

// Options configures a Tracker. Every field is optional.
type Options struct {
	// Hub receives lifecycle events after commit.
	Hub streaming.EventHub
	// Guard vets step transitions. Nil means PermissiveGuard.
	Guard TransitionGuard
	// Filters evaluates ListRuns filters. Nil builds a private engine.
	Filters *expressions.ExprEngine
	Logger  *slog.Logger
	// Meter defaults to the global OpenTelemetry meter provider.
	Meter metric.Meter
	Now   func() time.Time
	// SuggestLimit replaces DefaultSuggestLimit when positive.
	SuggestLimit int
}

// Tracker runs workflow executions over a graph store. Each operation is one
// store transaction; the tracker keeps no state of its own and never retries.
type Tracker struct {
	store        store.Store
	hub          streaming.EventHub
	guard        TransitionGuard
	filters      *expressions.ExprEngine
	logger       *slog.Logger
	metrics      *metrics
	now          func() time.Time
	suggestLimit int
}

// NewTracker creates a Tracker over s.
func NewTracker(s store.Store, opts Options) (*Tracker, error) {
	t := &Tracker{
		store:        s,
		hub:          opts.Hub,
		guard:        opts.Guard,
		filters:      opts.Filters,
		logger:       opts.Logger,
		now:          opts.Now,
		suggestLimit: opts.SuggestLimit,
	}
	if t.guard == nil {
		t.guard = PermissiveGuard{}
	}
	if t.filters == nil {
		t.filters = expressions.NewExprEngine()
	}
	if t.logger == nil {
		t.logger = logging.Discard()
	}
	if t.now == nil {
		t.now = func() time.Time { return time.Now().UTC() }
	}
	if t.suggestLimit <= 0 {
		t.suggestLimit = DefaultSuggestLimit
	}

	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}
	t.metrics = m
	return t, nil
}

// publish delivers a committed event. Failures are logged, never returned:
// the state change has already happened.
func (t *Tracker) publish(ctx context.Context, event streaming.StreamEvent) {
	if t.hub == nil {
		return
	}
	event.Time = t.now()
	if err := t.hub.Publish(ctx, event); err != nil {
		t.logger.WarnContext(ctx, "event publish failed",
			slog.String("event_type", event.EventType),
			slog.Any("error", err))
	}
}
