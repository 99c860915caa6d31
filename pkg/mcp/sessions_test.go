package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatchRegistry_WatchAndLookup(t *testing.T) {
	r := NewWatchRegistry()

	r.Watch("run-1", "session-abc")
	r.Watch("run-1", "session-abc")
	assert.Equal(t, []string{"session-abc"}, r.SessionsFor("run-1"))
}

func TestWatchRegistry_NotWatched(t *testing.T) {
	r := NewWatchRegistry()

	assert.Empty(t, r.SessionsFor("unknown"))
}

func TestWatchRegistry_MultipleSessions(t *testing.T) {
	r := NewWatchRegistry()

	r.Watch("run-1", "session-1")
	r.Watch("run-1", "session-2")
	assert.ElementsMatch(t, []string{"session-1", "session-2"}, r.SessionsFor("run-1"))
}

func TestWatchRegistry_Remove(t *testing.T) {
	r := NewWatchRegistry()

	r.Watch("run-1", "session-abc")
	r.Watch("run-2", "session-abc")
	r.Watch("run-2", "session-xyz")

	r.Remove("session-abc")

	assert.Empty(t, r.SessionsFor("run-1"), "run-1 should have no watchers")
	assert.Equal(t, []string{"session-xyz"}, r.SessionsFor("run-2"))
}
