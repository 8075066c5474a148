package identity

import (
	"maps"
	"slices"
	"sync"
)

// Guard is a registered authentication requirement.
type Guard struct {
	cache *Cache
	id    uint64
	fire  func()

	mu       sync.Mutex
	armed    bool
	canceled bool
}

// RequireAuth declares that the caller needs an authenticated user. When the
// status is, or later becomes, unauthenticated, onUnmet runs once per
// transition into that state. It never runs while the status is loading or a
// navigation is in progress, and never after Cancel.
func (c *Cache) RequireAuth(onUnmet func()) *Guard {
	g := &Guard{cache: c, fire: onUnmet, armed: true}

	c.mu.Lock()
	c.seq++
	g.id = c.seq
	c.guards[g.id] = g
	status, routing := c.status, c.routing
	c.mu.Unlock()

	g.evaluate(status, routing)
	return g
}

// Cancel unregisters the guard. A callback not yet fired never fires.
func (g *Guard) Cancel() {
	g.mu.Lock()
	g.canceled = true
	g.mu.Unlock()

	g.cache.mu.Lock()
	delete(g.cache.guards, g.id)
	g.cache.mu.Unlock()
}

func (g *Guard) evaluate(status Status, routing bool) {
	g.mu.Lock()
	if g.canceled {
		g.mu.Unlock()
		return
	}
	switch status {
	case StatusAuthenticated:
		g.armed = true
		g.mu.Unlock()
		return
	case StatusUnauthenticated:
		if routing || !g.armed {
			g.mu.Unlock()
			return
		}
		g.armed = false
		g.mu.Unlock()
		if g.fire != nil {
			g.fire()
		}
	default:
		g.mu.Unlock()
	}
}

func sortedIDs[V any](m map[uint64]V) []uint64 {
	return slices.Sorted(maps.Keys(m))
}
