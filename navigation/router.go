// Package navigation is the router collaborator: it exposes the current
// location, changes it and reports when a navigation starts and completes.
package navigation

import (
	"context"
	"net/url"
	"slices"
	"sync"
)

// Location is a path plus its query string.
type Location struct {
	Path  string
	Query url.Values
}

// Parse splits a raw "path?query" string.
func Parse(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: u.Path, Query: u.Query()}, nil
}

// String renders the location with an encoded, key sorted query.
func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// Event is a navigation lifecycle event.
type Event int

const (
	Started Event = iota
	Completed
)

func (e Event) String() string {
	if e == Started {
		return "started"
	}
	return "completed"
}

// Listener receives navigation events with the target location.
type Listener func(Event, Location)

// Router changes the current location.
type Router interface {
	Location() Location
	// Push navigates to loc, adding a history entry.
	Push(ctx context.Context, loc Location) error
	// Replace navigates to loc in place of the current history entry.
	Replace(ctx context.Context, loc Location) error
	Subscribe(fn Listener) (unsubscribe func())
}

// Memory is an in-process Router keeping a history stack.
type Memory struct {
	mu        sync.Mutex
	history   []Location
	listeners map[int]Listener
	seq       int
}

// NewMemory starts at initial.
func NewMemory(initial Location) *Memory {
	return &Memory{
		history:   []Location{clone(initial)},
		listeners: make(map[int]Listener),
	}
}

func (m *Memory) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.history[len(m.history)-1])
}

// History returns every location visited, oldest first.
func (m *Memory) History() []Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Location, len(m.history))
	for i, l := range m.history {
		out[i] = clone(l)
	}
	return out
}

func (m *Memory) Push(ctx context.Context, loc Location) error {
	return m.navigate(ctx, loc, false)
}

func (m *Memory) Replace(ctx context.Context, loc Location) error {
	return m.navigate(ctx, loc, true)
}

// Back returns to the previous location, if any.
func (m *Memory) Back(ctx context.Context) error {
	m.mu.Lock()
	if len(m.history) < 2 {
		m.mu.Unlock()
		return nil
	}
	m.history = m.history[:len(m.history)-1]
	loc := clone(m.history[len(m.history)-1])
	m.mu.Unlock()

	m.emit(Started, loc)
	m.emit(Completed, loc)
	return ctx.Err()
}

func (m *Memory) navigate(ctx context.Context, loc Location, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc = clone(loc)
	m.emit(Started, loc)

	m.mu.Lock()
	if replace {
		m.history[len(m.history)-1] = loc
	} else {
		m.history = append(m.history, loc)
	}
	m.mu.Unlock()

	m.emit(Completed, loc)
	return nil
}

func (m *Memory) Subscribe(fn Listener) func() {
	m.mu.Lock()
	m.seq++
	id := m.seq
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Memory) emit(ev Event, loc Location) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		m.mu.Lock()
		fn, ok := m.listeners[id]
		m.mu.Unlock()
		if ok {
			fn(ev, loc)
		}
	}
}

func clone(l Location) Location {
	out := Location{Path: l.Path}
	if l.Query != nil {
		out.Query = make(url.Values, len(l.Query))
		for k, v := range l.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	return out
}
