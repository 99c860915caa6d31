package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlite/internal/streaming"
)

// notificationMethod is the MCP method used for run lifecycle pushes.
const notificationMethod = "notifications/message"

// RunNotifier pushes run lifecycle events to the sessions watching the run.
type RunNotifier struct {
	mcpServer *server.MCPServer
	watches   *WatchRegistry
	logger    *slog.Logger
}

// NewRunNotifier creates a notifier that pushes to watching sessions.
func NewRunNotifier(mcpServer *server.MCPServer, watches *WatchRegistry, logger *slog.Logger) *RunNotifier {
	return &RunNotifier{mcpServer: mcpServer, watches: watches, logger: logger}
}

// Forward subscribes to hub and delivers events until ctx is done or the
// returned stop function is called. Stop is safe to call more than once.
func (n *RunNotifier) Forward(ctx context.Context, hub streaming.EventHub) (func(), error) {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cancel()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	go func() {
		for event := range ch {
			n.Notify(event)
		}
	}()
	return stop, nil
}

// Notify sends one event to every session watching its run. Best-effort:
// sessions that went away are dropped silently.
func (n *RunNotifier) Notify(event streaming.StreamEvent) {
	payload := map[string]any{
		"level":  "info",
		"logger": "flowlite",
		"data":   event,
	}
	for _, sessionID := range n.watches.SessionsFor(event.RunID) {
		err := n.mcpServer.SendNotificationToSpecificClient(sessionID, notificationMethod, payload)
		if errors.Is(err, server.ErrSessionNotFound) {
			n.watches.Remove(sessionID)
			continue
		}
		if err != nil {
			n.logger.Warn("run notification failed",
				slog.String("session_id", sessionID),
				slog.String("run_id", event.RunID),
				slog.Any("error", err))
		}
	}
}
