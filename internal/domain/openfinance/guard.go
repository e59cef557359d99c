package openfinance

import "sync"

// syncGuard serializes syncs per connection. Webhooks and the
// scheduler can both wake a connection at the same moment; only one
// gets to run, the other is told to stand down.
type syncGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newSyncGuard() *syncGuard {
	return &syncGuard{active: make(map[string]struct{})}
}

// acquire reserves the connection, returning false when a sync for it
// is already running.
func (g *syncGuard) acquire(providerItemID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[providerItemID]; busy {
		return false
	}
	g.active[providerItemID] = struct{}{}
	return true
}

func (g *syncGuard) release(providerItemID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, providerItemID)
}
