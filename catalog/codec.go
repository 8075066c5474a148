package catalog

import (
	"net/url"
	"strconv"
)

// EncodeQuery mirrors s into URL query parameters. Each filter value becomes
// a repeated parameter; page 1 and an empty order are omitted.
func EncodeQuery(s State) url.Values {
	q := url.Values{}
	for _, f := range s.Filters.entries {
		q[f.Field] = append([]string(nil), f.Value...)
	}
	if s.Order != "" {
		q.Set(FieldOrder, s.Order)
	}
	if s.Page > 1 {
		q.Set(FieldPage, strconv.Itoa(s.Page))
	}
	return q
}

// DecodeQuery reads a state from URL query parameters. base supplies filters
// carried by the path, such as the category; the query overrides them field
// by field. Malformed pages decode as page 1.
func DecodeQuery(q url.Values, base FilterSet) State {
	s := NewState(base)
	for field, values := range q {
		switch field {
		case FieldPage:
			if n, err := strconv.Atoi(q.Get(FieldPage)); err == nil && n > 1 {
				s.Page = n
			}
		case FieldOrder:
			s.Order = q.Get(FieldOrder)
		default:
			s.Filters = s.Filters.With(field, values)
		}
	}
	return s
}
