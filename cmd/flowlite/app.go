package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/flowlite/internal/catalog"
	"github.com/rendis/flowlite/internal/engine"
	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/internal/scheduler"
	"github.com/rendis/flowlite/internal/store"
	"github.com/rendis/flowlite/internal/streaming"
	"github.com/rendis/flowlite/internal/validation"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg      Config
	logger   *slog.Logger
	store    store.Store
	hub      streaming.EventHub
	tracker  *engine.Tracker
	catalog  *catalog.Reader
	importer *catalog.Importer
	sweeper  *scheduler.Sweeper

	closers []func()
}

// openApp opens the store, runs migrations and wires the tracker.
func openApp(ctx context.Context, cfg Config, logOut io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logging.New(cfg.LogLevel, cfg.LogFormat, logOut)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.store.Close() })
	if err = a.store.Migrate(ctx); err != nil {
		return nil, err
	}

	if cfg.NATSURL != "" {
		nh, natsErr := streaming.ConnectNATS(cfg.NATSURL, a.logger)
		if natsErr != nil {
			return nil, natsErr
		}
		a.hub = nh
		a.closers = append(a.closers, nh.Close)
	} else {
		a.hub = streaming.NewMemoryHub()
	}

	guard, err := engine.ParseGuard(cfg.TransitionGuard, nil)
	if err != nil {
		return nil, fmt.Errorf("transition_guard: %w", err)
	}
	a.tracker, err = engine.NewTracker(a.store, engine.Options{
		Hub:          a.hub,
		Guard:        guard,
		Logger:       a.logger,
		SuggestLimit: cfg.SuggestLimit,
	})
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewTemplateValidator()
	if err != nil {
		return nil, err
	}
	a.catalog = catalog.NewReader(a.store)
	a.importer = catalog.NewImporter(a.store, validator, a.logger)

	if cfg.SweepSchedule != sweepOff {
		a.sweeper, err = scheduler.NewSweeper(a.tracker, cfg.SweepSchedule, scheduler.DefaultRetryPolicy, a.logger)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Backend {
	case backendNeo4j:
		return store.NewNeo4jStore(ctx, cfg.Neo4j)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.NewLibSQLStore("file:" + cfg.DBPath)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
