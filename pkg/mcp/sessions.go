package mcp

import "sync"

// WatchRegistry maps run IDs to the MCP sessions watching them.
// Populated when a session starts or watches a run.
type WatchRegistry struct {
	mu      sync.RWMutex
	watches map[string]map[string]struct{} // runID → sessionIDs
}

// NewWatchRegistry creates a new empty WatchRegistry.
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{watches: make(map[string]map[string]struct{})}
}

// Watch adds a session to the watchers of a run. Watching twice is a no-op.
func (r *WatchRegistry) Watch(runID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.watches[runID]
	if !ok {
		set = make(map[string]struct{})
		r.watches[runID] = set
	}
	set[sessionID] = struct{}{}
}

// SessionsFor returns the sessions watching a run.
func (r *WatchRegistry) SessionsFor(runID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.watches[runID]
	out := make([]string, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

// Remove drops every watch held by a session. Called when a session
// disconnects.
func (r *WatchRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for runID, set := range r.watches {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.watches, runID)
		}
	}
}
