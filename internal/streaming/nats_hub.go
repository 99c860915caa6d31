package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix roots every subject published by NATSHub.
const DefaultSubjectPrefix = "flowlite.events"

// NATSHub is an EventHub backed by core NATS publish/subscribe, so events
// reach processes other than the one that committed the change. Subjects
// have the form <prefix>.<event_type>.<workflow_id>.<run_id>.
type NATSHub struct {
	nc       *nats.Conn
	prefix   string
	logger   *slog.Logger
	ownsConn bool
}

// ConnectNATS dials url and returns a hub that owns the connection.
func ConnectNATS(url string, logger *slog.Logger) (*NATSHub, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(
		url,
		nats.Name("flowlite"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	h := NewNATSHub(nc, logger)
	h.ownsConn = true
	return h, nil
}

// NewNATSHub wraps an existing connection. Close leaves nc open.
func NewNATSHub(nc *nats.Conn, logger *slog.Logger) *NATSHub {
	return &NATSHub{nc: nc, prefix: DefaultSubjectPrefix, logger: logger}
}

// Publish encodes the event as JSON and publishes it on its subject.
func (h *NATSHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := h.nc.Publish(h.subject(event.EventType, event.WorkflowID, event.RunID), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}

// Subscribe narrows the NATS subject as far as the filter allows and applies
// the rest of the filter locally. Slow subscribers lose events, as with MemoryHub.
func (h *NATSHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan StreamEvent, defaultChannelBuffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := h.nc.Subscribe(h.filterSubject(filter), func(m *nats.Msg) {
		var e StreamEvent
		if err := json.Unmarshal(m.Data, &e); err != nil {
			h.logger.Debug("dropping malformed event", slog.String("subject", m.Subject), slog.Any("error", err))
			return
		}
		if !matchFilter(filter, e) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Flush blocks until the server has processed everything published so far.
func (h *NATSHub) Flush() error {
	return h.nc.Flush()
}

// Close releases the connection when the hub opened it.
func (h *NATSHub) Close() {
	if h.ownsConn {
		h.nc.Close()
	}
}

func (h *NATSHub) subject(eventType, workflowID, runID string) string {
	return strings.Join([]string{h.prefix, token(eventType), token(workflowID), token(runID)}, ".")
}

func (h *NATSHub) filterSubject(f EventFilter) string {
	eventType := "*"
	if len(f.EventTypes) == 1 {
		eventType = token(f.EventTypes[0])
	}
	workflowID, runID := "*", "*"
	if f.WorkflowID != "" {
		workflowID = token(f.WorkflowID)
	}
	if f.RunID != "" {
		runID = token(f.RunID)
	}
	return strings.Join([]string{h.prefix, eventType, workflowID, runID}, ".")
}

// token makes s safe as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

var _ EventHub = (*NATSHub)(nil)
