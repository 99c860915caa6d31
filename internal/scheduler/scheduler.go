package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowlite/internal/engine"
	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/pkg/schema"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "@every 1m"

// RunCompleter is the part of the tracker the sweeper drives.
// Satisfied by *engine.Tracker.
type RunCompleter interface {
	ListRuns(ctx context.Context, q engine.RunQuery) ([]schema.RunSummary, error)
	TryCompleteRun(ctx context.Context, runID string) (*engine.CompletionResult, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked   int      `json:"checked"`
	Completed []string `json:"completed"`
	Failed    int      `json:"failed"`
}

// Sweeper periodically calls TryCompleteRun on every running run. It is an
// outer caller of the tracker: completion is still decided by the tracker.
type Sweeper struct {
	runs     RunCompleter
	schedule cron.Schedule
	policy   RetryPolicy
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // run IDs currently being checked
}

// NewSweeper parses spec (five-field cron or a descriptor such as "@every 30s")
// and returns a stopped Sweeper. An empty spec uses DefaultSchedule.
func NewSweeper(runs RunCompleter, spec string, policy RetryPolicy, logger *slog.Logger) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sweeper{
		runs:     runs,
		schedule: schedule,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}, nil
}

// ParseSchedule parses a five-field cron expression or a descriptor.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse sweep schedule %q: %v", spec, err).WithCause(err)
	}
	return schedule, nil
}

// Start launches the background sweep loop. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already started")
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(sweepCtx)
	s.logger.Info("sweeper started")
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	for {
		s.tick(ctx)

		wait := s.schedule.Next(s.now()).Sub(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Error("sweep failed", slog.String("error", err.Error()))
		return
	}
	if len(res.Completed) > 0 || res.Failed > 0 {
		s.logger.Info("sweep finished",
			slog.Int("checked", res.Checked),
			slog.Int("completed", len(res.Completed)),
			slog.Int("failed", res.Failed))
	}
}

// SweepOnce checks every running run once. Per-run failures are logged and
// counted; only a failure to list runs is returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (*SweepResult, error) {
	running, err := retry(ctx, s.policy, func() ([]schema.RunSummary, error) {
		return s.runs.ListRuns(ctx, engine.RunQuery{Status: schema.RunStatusRunning})
	})
	if err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}

	res := &SweepResult{Completed: []string{}}
	for _, sum := range running {
		if ctx.Err() != nil {
			break
		}
		runID := sum.Run.ID
		// Only runs whose every step run is done can complete.
		if sum.Total == 0 || sum.Done != sum.Total {
			res.Checked++
			continue
		}
		if !s.tryAcquire(runID) {
			continue
		}
		res.Checked++

		out, err := retry(ctx, s.policy, func() (*engine.CompletionResult, error) {
			return s.runs.TryCompleteRun(ctx, runID)
		})
		s.release(runID)
		if err != nil {
			res.Failed++
			s.logger.Warn("completion check failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
			continue
		}
		if out.Changed {
			res.Completed = append(res.Completed, runID)
		}
	}
	return res, nil
}

// Stop shuts down the sweep loop and waits for the current sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("sweeper stopped")
	return nil
}

// tryAcquire marks a run as being checked; it returns false if it already is.
func (s *Sweeper) tryAcquire(runID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[runID]; ok {
		return false
	}
	s.inflight[runID] = struct{}{}
	return true
}

func (s *Sweeper) release(runID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, runID)
}
