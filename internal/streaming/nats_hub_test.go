package streaming

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rendis/flowlite/internal/logging"
	"github.com/rendis/flowlite/pkg/schema"
)

func TestNATSHub_Subjects(t *testing.T) {
	h := NewNATSHub(nil, logging.Discard())

	assert.Equal(t, "flowlite.events.run_started.wf-1.run-1", h.subject(schema.EventRunStarted, "wf-1", "run-1"))
	assert.Equal(t, "flowlite.events.step_advanced._.run_1", h.subject(schema.EventStepAdvanced, "", "run.1"))

	assert.Equal(t, "flowlite.events.*.*.*", h.filterSubject(EventFilter{}))
	assert.Equal(t, "flowlite.events.run_completed.*.run-9",
		h.filterSubject(EventFilter{RunID: "run-9", EventTypes: []string{schema.EventRunCompleted}}))
	assert.Equal(t, "flowlite.events.*.wf-2.*",
		h.filterSubject(EventFilter{WorkflowID: "wf-2", EventTypes: []string{"a", "b"}}))
}

func newNATSConn(t *testing.T) *nats.Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping nats integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestNATSHub_PublishSubscribe(t *testing.T) {
	hub := NewNATSHub(newNATSConn(t), logging.Discard())
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		RunID:      "run-1",
		EventTypes: []string{schema.EventRunStarted, schema.EventRunCompleted},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{EventType: schema.EventRunStarted, WorkflowID: "wf", RunID: "run-1"}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{EventType: schema.EventStepAdvanced, WorkflowID: "wf", RunID: "run-1"}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{EventType: schema.EventRunCompleted, WorkflowID: "wf", RunID: "run-2"}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{EventType: schema.EventRunCompleted, WorkflowID: "wf", RunID: "run-1"}))
	require.NoError(t, hub.Flush())

	assert.Equal(t, schema.EventRunStarted, receive(t, ch).EventType)
	got := receive(t, ch)
	assert.Equal(t, schema.EventRunCompleted, got.EventType)
	assert.Equal(t, "run-1", got.RunID)
	assertQuiet(t, ch)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}
