// Package sidebar pins a tall aside element while the page scrolls. Step is a
// pure transition over geometry snapshots; Positioner is the edge that
// measures the element and applies the resulting style.
package sidebar

import "strconv"

// Rect is a bounding box relative to the viewport, in CSS pixels.
type Rect struct {
	Top    float64
	Bottom float64
	Left   float64
	Width  float64
	Height float64
}

// Geometry is one measurement taken on a scroll or resize event.
type Geometry struct {
	ScrollTop float64
	Sidebar   Rect
	// Container is the column the sidebar lives in; its width is the pinned
	// width.
	Container      Rect
	HeaderHeight   float64
	ViewportHeight float64
}

func (g Geometry) tall() bool {
	return g.Sidebar.Height > g.ViewportHeight-g.HeaderHeight
}

// Mode is how the sidebar is positioned.
type Mode int

const (
	Unset Mode = iota
	FixedTop
	FixedBottom
	AbsoluteBottom
	RelativeBottom
)

func (m Mode) String() string {
	switch m {
	case FixedTop:
		return "fixedTop"
	case FixedBottom:
		return "fixedBottom"
	case AbsoluteBottom:
		return "absoluteBottom"
	case RelativeBottom:
		return "relativeBottom"
	}
	return "unset"
}

// State is what the machine remembers between events.
type State struct {
	Mode          Mode
	LastScrollTop float64
	// Offset is the frozen distance from the container top in RelativeBottom.
	Offset float64
}

// Style is the positioning to apply. Empty fields clear the property.
type Style struct {
	Position string
	Top      string
	Bottom   string
	Width    string
}

// Step advances s with a scroll measurement. The scroll direction is the sign
// of g.ScrollTop minus the last scroll position.
func Step(s State, g Geometry) (State, Style) {
	delta := g.ScrollTop - s.LastScrollTop
	next := State{Mode: s.Mode, LastScrollTop: g.ScrollTop, Offset: s.Offset}

	switch {
	case !g.tall():
		next.Mode = Unset
	case (s.Mode == FixedTop || s.Mode == FixedBottom) && g.Container.Top >= g.HeaderHeight:
		next.Mode = Unset
	case delta > 0:
		next = down(next, g)
	case delta < 0:
		next = up(next, g)
	}

	if next.Mode != RelativeBottom {
		next.Offset = 0
	}
	return next, styleOf(next, g)
}

func down(s State, g Geometry) State {
	switch s.Mode {
	case Unset:
		if g.Container.Top < g.HeaderHeight && g.Sidebar.Bottom <= g.ViewportHeight {
			s.Mode = FixedBottom
		}
	case FixedTop, FixedBottom:
		switch {
		case g.Container.Bottom <= g.ViewportHeight:
			s.Mode = AbsoluteBottom
		case s.Mode == FixedTop:
			s = freeze(s, g)
		}
	case RelativeBottom:
		if g.Sidebar.Bottom <= g.ViewportHeight {
			s.Mode = FixedBottom
		}
	}
	return s
}

func up(s State, g Geometry) State {
	switch s.Mode {
	case RelativeBottom, AbsoluteBottom:
		switch {
		case g.Sidebar.Top >= g.HeaderHeight:
			s.Mode = FixedTop
		case s.Mode == AbsoluteBottom && g.Sidebar.Bottom > g.ViewportHeight:
			s = freeze(s, g)
		}
	case FixedBottom:
		s = freeze(s, g)
	}
	return s
}

// freeze keeps the sidebar where it currently is within the document.
func freeze(s State, g Geometry) State {
	s.Mode = RelativeBottom
	s.Offset = g.Sidebar.Top - g.Container.Top
	return s
}

// Resize recomputes the style of s for a new geometry. The mode never changes
// on resize; only the pinned width follows the container.
func Resize(s State, g Geometry) Style {
	return styleOf(s, g)
}

func styleOf(s State, g Geometry) Style {
	width := px(g.Container.Width)
	switch s.Mode {
	case FixedTop:
		return Style{Position: "fixed", Top: px(g.HeaderHeight), Width: width}
	case FixedBottom:
		return Style{Position: "fixed", Bottom: "0px", Width: width}
	case AbsoluteBottom:
		return Style{Position: "absolute", Bottom: "0px", Width: width}
	case RelativeBottom:
		return Style{Position: "relative", Top: px(s.Offset)}
	}
	return Style{}
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
