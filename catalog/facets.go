package catalog

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// FacetKind tells how a facet is rendered.
type FacetKind string

const (
	FacetRange  FacetKind = "range"
	FacetChoice FacetKind = "choice"
)

// Choice is one selectable value of a choice facet.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Facet is server reported metadata about a filter: its bounds or choices.
type Facet struct {
	Field   string           `json:"field"`
	Kind    FacetKind        `json:"kind"`
	Label   string           `json:"label,omitempty"`
	Min     *decimal.Decimal `json:"min,omitempty"`
	Max     *decimal.Decimal `json:"max,omitempty"`
	Choices []Choice         `json:"choices,omitempty"`
}

// Definitions are the facets learned within one listing context. They only
// ever grow: bounds widen and choices accumulate, whatever the filter values.
type Definitions struct {
	facets []Facet
}

// Merge returns definitions widened by incoming.
func (d Definitions) Merge(incoming []Facet) Definitions {
	out := Definitions{facets: cloneFacets(d.facets)}
	for _, f := range incoming {
		i, found := out.index(f.Field)
		if !found {
			out.facets = slices.Insert(out.facets, i, cloneFacet(f))
			continue
		}
		out.facets[i] = widen(out.facets[i], f)
	}
	return out
}

// Get returns the definition of field.
func (d Definitions) Get(field string) (Facet, bool) {
	i, found := d.index(field)
	if !found {
		return Facet{}, false
	}
	return cloneFacet(d.facets[i]), true
}

// All returns every definition ordered by field.
func (d Definitions) All() []Facet { return cloneFacets(d.facets) }

// Len returns the number of known facets.
func (d Definitions) Len() int { return len(d.facets) }

func (d Definitions) index(field string) (int, bool) {
	return slices.BinarySearchFunc(d.facets, field, func(f Facet, field string) int {
		return strings.Compare(f.Field, field)
	})
}

func widen(known, next Facet) Facet {
	out := cloneFacet(known)
	if next.Label != "" {
		out.Label = next.Label
	}
	if next.Min != nil && (out.Min == nil || next.Min.LessThan(*out.Min)) {
		v := *next.Min
		out.Min = &v
	}
	if next.Max != nil && (out.Max == nil || next.Max.GreaterThan(*out.Max)) {
		v := *next.Max
		out.Max = &v
	}
	for _, c := range next.Choices {
		i := slices.IndexFunc(out.Choices, func(k Choice) bool { return k.Value == c.Value })
		if i < 0 {
			out.Choices = append(out.Choices, c)
			continue
		}
		out.Choices[i] = c
	}
	return out
}

func cloneFacet(f Facet) Facet {
	out := f
	if f.Min != nil {
		v := *f.Min
		out.Min = &v
	}
	if f.Max != nil {
		v := *f.Max
		out.Max = &v
	}
	out.Choices = slices.Clone(f.Choices)
	return out
}

func cloneFacets(in []Facet) []Facet {
	if len(in) == 0 {
		return nil
	}
	out := make([]Facet, len(in))
	for i, f := range in {
		out[i] = cloneFacet(f)
	}
	return out
}
