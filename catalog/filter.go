// Package catalog drives product listings: a pure reducer over filters, order
// and page, its URL mirror, learned facet definitions and the product list
// reads with their retention policy.
package catalog

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// Reserved query fields that never become filters.
const (
	FieldPage  = "page"
	FieldOrder = "order"
)

const (
	minSuffix = "_min"
	maxSuffix = "_max"
)

// ErrReservedField is returned by ValidateField for page and order.
var ErrReservedField = errors.New("catalog: reserved filter field")

// ValidateField reports whether field can hold a filter.
func ValidateField(field string) error {
	switch field {
	case "":
		return errors.New("catalog: empty filter field")
	case FieldPage, FieldOrder:
		return ErrReservedField
	}
	return nil
}

// Filter constrains one field. A filter always has at least one value.
type Filter struct {
	Field string
	Value []string
}

// FilterSet is an ordered set of filters, at most one per field, sorted by
// field. The zero value is an empty set. Methods never modify the receiver.
type FilterSet struct {
	entries []Filter
}

// NewFilterSet builds a canonical set from field values. Empty values and
// reserved fields are dropped.
func NewFilterSet(values map[string][]string) FilterSet {
	var fs FilterSet
	for field, v := range values {
		fs = fs.With(field, v)
	}
	return fs
}

// normalize drops empty strings; nil means no constraint.
func normalize(value []string) []string {
	var out []string
	for _, v := range value {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s FilterSet) index(field string) (int, bool) {
	return slices.BinarySearchFunc(s.entries, field, func(f Filter, field string) int {
		return strings.Compare(f.Field, field)
	})
}

// With returns a copy of s where field holds value. An empty value removes
// the field. Reserved fields are ignored.
func (s FilterSet) With(field string, value []string) FilterSet {
	if ValidateField(field) != nil {
		return s
	}
	value = normalize(value)
	i, found := s.index(field)

	entries := make([]Filter, 0, len(s.entries)+1)
	entries = append(entries, s.entries[:i]...)
	if len(value) > 0 {
		entries = append(entries, Filter{Field: field, Value: value})
	}
	if found {
		i++
	}
	entries = append(entries, s.entries[i:]...)
	return FilterSet{entries: cloneEntries(entries)}
}

// Without returns a copy of s without field.
func (s FilterSet) Without(field string) FilterSet {
	return s.With(field, nil)
}

// Get returns the values of field.
func (s FilterSet) Get(field string) ([]string, bool) {
	i, found := s.index(field)
	if !found {
		return nil, false
	}
	return append([]string(nil), s.entries[i].Value...), true
}

// Has reports whether field is constrained.
func (s FilterSet) Has(field string) bool {
	_, found := s.index(field)
	return found
}

// Len returns the number of constrained fields.
func (s FilterSet) Len() int { return len(s.entries) }

// Fields returns the constrained fields in order.
func (s FilterSet) Fields() []string {
	out := make([]string, len(s.entries))
	for i, f := range s.entries {
		out[i] = f.Field
	}
	return out
}

// Entries returns a copy of the filters in order.
func (s FilterSet) Entries() []Filter {
	return cloneEntries(s.entries)
}

// Equal reports whether both sets hold the same filters.
func (s FilterSet) Equal(other FilterSet) bool {
	return slices.EqualFunc(s.entries, other.entries, func(a, b Filter) bool {
		return a.Field == b.Field && slices.Equal(a.Value, b.Value)
	})
}

// Only returns the subset of s over fields.
func (s FilterSet) Only(fields ...string) FilterSet {
	var out FilterSet
	for _, f := range fields {
		if v, ok := s.Get(f); ok {
			out = out.With(f, v)
		}
	}
	return out
}

// KeySegment renders the set canonically for cache keys.
func (s FilterSet) KeySegment() string {
	parts := make([]string, len(s.entries))
	for i, f := range s.entries {
		quoted := make([]string, len(f.Value))
		for j, v := range f.Value {
			quoted[j] = strconv.Quote(v)
		}
		parts[i] = strconv.Quote(f.Field) + "=[" + strings.Join(quoted, ",") + "]"
	}
	return "filters{" + strings.Join(parts, ",") + "}"
}

func cloneEntries(in []Filter) []Filter {
	if len(in) == 0 {
		return nil
	}
	out := make([]Filter, len(in))
	for i, f := range in {
		out[i] = Filter{Field: f.Field, Value: append([]string(nil), f.Value...)}
	}
	return out
}

// RangeOf reads back the composite range stored as field_min and field_max.
// Empty bounds are open.
func RangeOf(s FilterSet, field string) (lo, hi string, ok bool) {
	if v, found := s.Get(field + minSuffix); found {
		lo, ok = v[0], true
	}
	if v, found := s.Get(field + maxSuffix); found {
		hi, ok = v[0], true
	}
	return lo, hi, ok
}

// ListOf reads back a multi-select filter.
func ListOf(s FilterSet, field string) []string {
	v, _ := s.Get(field)
	return v
}
