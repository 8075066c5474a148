package catalog

// State is everything a listing needs besides its context.
type State struct {
	Filters FilterSet
	Order   string
	Page    int
}

// NewState starts on page 1 with filters.
func NewState(filters FilterSet) State {
	return State{Filters: filters, Page: 1}
}

// Equal reports whether both states are identical.
func (s State) Equal(other State) bool {
	return s.Order == other.Order && s.Page == other.Page && s.Filters.Equal(other.Filters)
}

// Action is a reducer input.
type Action interface {
	apply(State) State
}

// SetFilter replaces or, with an empty value, removes one field.
type SetFilter struct {
	Field string
	Value []string
}

func (a SetFilter) apply(s State) State {
	if ValidateField(a.Field) != nil {
		return s
	}
	s.Filters = s.Filters.With(a.Field, a.Value)
	s.Page = 1
	return s
}

// SetFilters changes several fields at once; composite controls use it so a
// single interaction produces one state change.
type SetFilters struct {
	Values map[string][]string
}

func (a SetFilters) apply(s State) State {
	fs := s.Filters
	for field, v := range a.Values {
		fs = fs.With(field, v)
	}
	s.Filters = fs
	s.Page = 1
	return s
}

// Reset replaces the whole filter set, used when the listing context changes.
type Reset struct {
	Filters FilterSet
}

func (a Reset) apply(s State) State {
	s.Filters = a.Filters
	s.Page = 1
	return s
}

// SetOrder changes the sort order and keeps the page.
type SetOrder struct {
	Order string
}

func (a SetOrder) apply(s State) State {
	s.Order = a.Order
	return s
}

// SetPage moves to page; pages below 1 become 1.
type SetPage struct {
	Page int
}

func (a SetPage) apply(s State) State {
	s.Page = max(a.Page, 1)
	return s
}

// Hydrate replaces the state wholesale, used when mounting from the URL.
type Hydrate struct {
	State State
}

func (a Hydrate) apply(State) State {
	s := a.State
	s.Page = max(s.Page, 1)
	return s
}

// RangeFilter sets the two fields of a range control. Empty bounds are open
// and remove their field.
func RangeFilter(field, lo, hi string) SetFilters {
	return SetFilters{Values: map[string][]string{
		field + minSuffix: {lo},
		field + maxSuffix: {hi},
	}}
}

// ListFilter sets a multi-select control. No values removes the field.
func ListFilter(field string, values ...string) SetFilter {
	return SetFilter{Field: field, Value: values}
}

// Pin restores every field of base that s lacks. Filters the path implies may
// take another value but are never removed, since the URL could not express
// their absence.
func Pin(s State, base FilterSet) State {
	for _, f := range base.entries {
		if !s.Filters.Has(f.Field) {
			s.Filters = s.Filters.With(f.Field, f.Value)
		}
	}
	return s
}

// Reduce applies a to s. It is pure; nil actions leave s unchanged.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}
