package sidebar

import (
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/pkg/logger"
)

// Element is the positioned node.
type Element interface {
	Measure() Geometry
	Apply(Style)
}

// Events delivers scroll and resize notifications. Each registration returns
// a function removing it.
type Events interface {
	OnScroll(fn func()) (remove func())
	OnResize(fn func()) (remove func())
}

// Positioner drives one element from scroll and resize events.
type Positioner struct {
	el  Element
	log logger.Logger

	mu       sync.Mutex
	state    State
	applied  Style
	detached bool
	removers []func()
}

// Attach starts positioning el. The current geometry seeds the scroll
// position so the first event has a direction.
func Attach(el Element, ev Events, log logger.Logger) *Positioner {
	p := &Positioner{
		el:    el,
		log:   logger.OrNop(log),
		state: State{LastScrollTop: el.Measure().ScrollTop},
	}
	p.removers = []func(){
		ev.OnScroll(p.Scroll),
		ev.OnResize(p.Resize),
	}
	return p
}

// Scroll handles a scroll event.
func (p *Positioner) Scroll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached {
		return
	}

	prev := p.state.Mode
	next, style := Step(p.state, p.el.Measure())
	p.state = next
	if next.Mode != prev {
		p.log.Debug("sidebar mode changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", next.Mode),
		)
	}
	p.apply(style)
}

// Resize handles a resize event.
func (p *Positioner) Resize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached {
		return
	}
	p.apply(Resize(p.state, p.el.Measure()))
}

func (p *Positioner) apply(style Style) {
	if style == p.applied {
		return
	}
	p.applied = style
	p.el.Apply(style)
}

// State returns the current machine state.
func (p *Positioner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Detach removes the listeners. Later events are ignored.
func (p *Positioner) Detach() {
	p.mu.Lock()
	removers := p.removers
	p.removers = nil
	p.detached = true
	p.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
}
