package sidebar

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	header   = 100
	viewport = 800
)

// geometry builds a measurement for a 1500px sidebar in a 300px wide column.
func geometry(scrollTop, containerTop, containerBottom, sidebarTop float64) Geometry {
	return Geometry{
		ScrollTop:      scrollTop,
		Sidebar:        Rect{Top: sidebarTop, Bottom: sidebarTop + 1500, Width: 300, Height: 1500},
		Container:      Rect{Top: containerTop, Bottom: containerBottom, Width: 300, Height: containerBottom - containerTop},
		HeaderHeight:   header,
		ViewportHeight: viewport,
	}
}

func TestStep_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		geo    Geometry
		mode   Mode
		offset float64
		style  Style
	}{
		{
			name:  "short sidebar stays unset",
			state: State{Mode: FixedTop, LastScrollTop: 100},
			geo: func() Geometry {
				g := geometry(200, 0, 3000, 0)
				g.Sidebar.Height = 500
				return g
			}(),
			mode: Unset,
		},
		{
			name:  "unset pins to bottom once its bottom is on screen",
			state: State{Mode: Unset, LastScrollTop: 900},
			geo:   geometry(1000, -800, 2200, -710),
			mode:  FixedBottom,
			style: Style{Position: "fixed", Bottom: "0px", Width: "300px"},
		},
		{
			name:  "unset keeps scrolling while the bottom is below the fold",
			state: State{Mode: Unset, LastScrollTop: 400},
			geo:   geometry(500, -300, 2700, -300),
			mode:  Unset,
		},
		{
			name:  "unset ignores down scroll before the container reaches the header",
			state: State{Mode: Unset, LastScrollTop: 0},
			geo:   geometry(10, 150, 3150, -800),
			mode:  Unset,
		},
		{
			name:  "fixed bottom follows the page tail",
			state: State{Mode: FixedBottom, LastScrollTop: 2300},
			geo:   geometry(2400, -2220, 780, -720),
			mode:  AbsoluteBottom,
			style: Style{Position: "absolute", Bottom: "0px", Width: "300px"},
		},
		{
			name:  "fixed top follows the page tail",
			state: State{Mode: FixedTop, LastScrollTop: 2300},
			geo:   geometry(2400, -2220, 780, 100),
			mode:  AbsoluteBottom,
			style: Style{Position: "absolute", Bottom: "0px", Width: "300px"},
		},
		{
			name:   "absolute bottom freezes when scrolling back up",
			state:  State{Mode: AbsoluteBottom, LastScrollTop: 2400},
			geo:    geometry(2300, -2120, 880, -620),
			mode:   RelativeBottom,
			offset: 1500,
			style:  Style{Position: "relative", Top: "1500px"},
		},
		{
			name:   "fixed bottom freezes when scrolling up",
			state:  State{Mode: FixedBottom, LastScrollTop: 1500},
			geo:    geometry(1450, -1250, 1750, -700),
			mode:   RelativeBottom,
			offset: 550,
			style:  Style{Position: "relative", Top: "550px"},
		},
		{
			name:   "fixed top freezes when scrolling down",
			state:  State{Mode: FixedTop, LastScrollTop: 1500},
			geo:    geometry(1550, -1350, 1650, 100),
			mode:   RelativeBottom,
			offset: 1450,
			style:  Style{Position: "relative", Top: "1450px"},
		},
		{
			name:  "relative pins to top once its top clears the header",
			state: State{Mode: RelativeBottom, LastScrollTop: 900, Offset: 1000},
			geo:   geometry(800, -600, 2400, 120),
			mode:  FixedTop,
			style: Style{Position: "fixed", Top: "100px", Width: "300px"},
		},
		{
			name:  "absolute pins to top once its top clears the header",
			state: State{Mode: AbsoluteBottom, LastScrollTop: 900},
			geo:   geometry(800, -600, 2400, 100),
			mode:  FixedTop,
			style: Style{Position: "fixed", Top: "100px", Width: "300px"},
		},
		{
			name:   "relative pins to bottom when scrolling down",
			state:  State{Mode: RelativeBottom, LastScrollTop: 1000, Offset: 1000},
			geo:    geometry(1200, -1000, 2000, -700),
			mode:   FixedBottom,
			style:  Style{Position: "fixed", Bottom: "0px", Width: "300px"},
			offset: 0,
		},
		{
			name:   "relative holds while its bottom is below the fold",
			state:  State{Mode: RelativeBottom, LastScrollTop: 1000, Offset: 1000},
			geo:    geometry(1100, -900, 2100, 100),
			mode:   RelativeBottom,
			offset: 1000,
			style:  Style{Position: "relative", Top: "1000px"},
		},
		{
			name:  "fixed top clears once the container is back under the header",
			state: State{Mode: FixedTop, LastScrollTop: 200},
			geo:   geometry(50, 150, 3150, 150),
			mode:  Unset,
		},
		{
			name:  "fixed bottom clears once the container is back under the header",
			state: State{Mode: FixedBottom, LastScrollTop: 200},
			geo:   geometry(50, 120, 3120, -700),
			mode:  Unset,
		},
		{
			name:  "no scroll keeps the mode",
			state: State{Mode: FixedBottom, LastScrollTop: 1000},
			geo:   geometry(1000, -800, 2200, -700),
			mode:  FixedBottom,
			style: Style{Position: "fixed", Bottom: "0px", Width: "300px"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, style := Step(tt.state, tt.geo)
			assert.Equal(t, tt.mode, next.Mode, "got %s", next.Mode)
			assert.Equal(t, tt.offset, next.Offset)
			assert.Equal(t, tt.geo.ScrollTop, next.LastScrollTop)
			assert.Equal(t, tt.style, style)
		})
	}
}

func randomSamples(seed int64, n int) []Geometry {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Geometry, n)
	scroll := 0.0
	for i := range out {
		scroll += float64(rng.Intn(400) - 150)
		scroll = max(scroll, 0)
		containerTop := 200 - scroll
		sidebarTop := containerTop + float64(rng.Intn(1500))
		out[i] = geometry(scroll, containerTop, containerTop+3000, sidebarTop)
	}
	return out
}

func TestStep_Deterministic(t *testing.T) {
	samples := randomSamples(42, 500)

	replay := func() ([]State, []Style) {
		var states []State
		var styles []Style
		s := State{}
		for _, g := range samples {
			var style Style
			s, style = Step(s, g)
			states = append(states, s)
			styles = append(styles, style)
		}
		return states, styles
	}

	states1, styles1 := replay()
	states2, styles2 := replay()
	assert.Equal(t, states1, states2)
	assert.Equal(t, styles1, styles2)

	seen := map[Mode]bool{}
	for _, s := range states1 {
		seen[s.Mode] = true
	}
	assert.True(t, len(seen) > 1, "the sample walk should leave the unset mode")
}

func TestResize_OnlyRecomputesWidth(t *testing.T) {
	g := geometry(1000, -800, 2200, -700)
	for _, m := range []Mode{Unset, FixedTop, FixedBottom, AbsoluteBottom, RelativeBottom} {
		s := State{Mode: m, LastScrollTop: 1000, Offset: 40}
		narrow := g
		narrow.Container.Width = 220
		_, before := Step(s, g)
		after := Resize(s, narrow)

		assert.Equal(t, before.Position, after.Position, m.String())
		assert.Equal(t, before.Top, after.Top, m.String())
		assert.Equal(t, before.Bottom, after.Bottom, m.String())
		if before.Width != "" {
			assert.Equal(t, "220px", after.Width, m.String())
		}
	}
}

type fakeElement struct {
	mu      sync.Mutex
	geo     Geometry
	applied []Style
}

func (e *fakeElement) Measure() Geometry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.geo
}

func (e *fakeElement) Apply(s Style) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied = append(e.applied, s)
}

func (e *fakeElement) set(g Geometry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.geo = g
}

type fakeEvents struct {
	scroll  map[int]func()
	resize  map[int]func()
	seq     int
	removed int
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{scroll: map[int]func(){}, resize: map[int]func(){}}
}

func (f *fakeEvents) register(into map[int]func(), fn func()) func() {
	f.seq++
	id := f.seq
	into[id] = fn
	return func() {
		delete(into, id)
		f.removed++
	}
}

func (f *fakeEvents) OnScroll(fn func()) func() { return f.register(f.scroll, fn) }
func (f *fakeEvents) OnResize(fn func()) func() { return f.register(f.resize, fn) }

func (f *fakeEvents) fire(into map[int]func()) {
	for _, fn := range into {
		fn()
	}
}

func TestPositioner(t *testing.T) {
	el := &fakeElement{geo: geometry(900, -700, 2300, -700)}
	ev := newFakeEvents()
	p := Attach(el, ev, nil)
	require.Len(t, ev.scroll, 1)
	require.Len(t, ev.resize, 1)

	el.set(geometry(1000, -800, 2200, -710))
	ev.fire(ev.scroll)
	assert.Equal(t, FixedBottom, p.State().Mode)
	require.Len(t, el.applied, 1)
	assert.Equal(t, "300px", el.applied[0].Width)

	// unchanged styles are not re-applied
	el.set(geometry(1001, -801, 2199, -710))
	ev.fire(ev.scroll)
	assert.Len(t, el.applied, 1)

	resized := geometry(1001, -801, 2199, -710)
	resized.Container.Width = 250
	el.set(resized)
	ev.fire(ev.resize)
	assert.Equal(t, FixedBottom, p.State().Mode)
	assert.Equal(t, float64(1001), p.State().LastScrollTop)
	require.Len(t, el.applied, 2)
	assert.Equal(t, "250px", el.applied[1].Width)

	p.Detach()
	assert.Empty(t, ev.scroll)
	assert.Empty(t, ev.resize)
	assert.Equal(t, 2, ev.removed)

	p.Scroll()
	assert.Len(t, el.applied, 2)
	p.Detach()
	assert.Equal(t, 2, ev.removed)
}
