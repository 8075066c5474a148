package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-storefront-cache/keyspace"
)

type observer struct {
	notify  func()
	refetch func(ctx context.Context)
}

// entry is the bookkeeping for one key. The data itself stays in the cache
// table under storageKey(key, dataGen).
type entry struct {
	mu sync.Mutex

	key keyspace.Key

	// gen is the generation new reads fetch under; dataGen the one the last
	// successful fetch stored. They differ once the entry is invalidated.
	gen     uint64
	dataGen uint64
	hasData bool

	status    EntryStatus
	err       error
	notFound  bool
	changed   bool
	updatedAt time.Time
	staleAt   time.Time

	lastAccess     time.Time
	fingerprint    uint64
	hasFingerprint bool

	observers map[uint64]*observer
}

func (e *entry) observed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.observers) > 0
}

// freshLocked reports whether the last data may be served without fetching.
func (e *entry) freshLocked(now time.Time) bool {
	if !e.hasData || e.dataGen != e.gen {
		return false
	}
	return e.staleAt.IsZero() || now.Before(e.staleAt)
}

func (e *entry) observerList() []*observer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*observer, 0, len(e.observers))
	for _, o := range e.observers {
		out = append(out, o)
	}
	return out
}

// notify delivers the current snapshot to every observer on the calling goroutine.
func (e *entry) notify() {
	for _, o := range e.observerList() {
		o.notify()
	}
}

// anyRefetch returns the refetch of one observer; all observers of an entry
// share the same query.
func (e *entry) anyRefetch() func(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.observers {
		return o.refetch
	}
	return nil
}
