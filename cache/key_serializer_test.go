package cache

import (
	"strings"
	"testing"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

type skuSegment string

func (s skuSegment) KeySegment() string { return "sku=" + string(s) }

func TestDefaultKeySerializer_BasicTypes(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		domain string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			domain: "session",
			args:   []any{},
			want:   "session",
		},
		{
			name:   "single int",
			domain: "basket",
			args:   []any{42},
			want:   joinWithSeparator("basket", "42"),
		},
		{
			name:   "multiple basic types",
			domain: "products",
			args:   []any{"list", 1, true, 3.5},
			want:   joinWithSeparator("products", "list", "1", "true", "3.5"),
		},
		{
			name:   "segmenter",
			domain: "products",
			args:   []any{skuSegment("A-1")},
			want:   joinWithSeparator("products", "sku=A-1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.domain, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_NilValues(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name string
		arg  any
		want string
	}{
		{name: "nil interface", arg: nil, want: "nil"},
		{name: "nil pointer", arg: (*int)(nil), want: "nil"},
		{name: "nil slice", arg: ([]int)(nil), want: "slice:nil"},
		{name: "nil map", arg: (map[string]int)(nil), want: "map:nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializer.SerializeValue(tt.arg); got != tt.want {
				t.Errorf("SerializeValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Composites(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	type listParams struct {
		Page  int
		Order string
		note  string
	}

	tests := []struct {
		name string
		arg  any
		want string
	}{
		{name: "empty slice", arg: []int{}, want: "slice[0]:{}"},
		{name: "int slice", arg: []int{3, 7}, want: "slice[2]:{3,7}"},
		{name: "string slice quoted", arg: []string{"a,b", "c"}, want: `slice[2]:{"a,b","c"}`},
		{name: "nested slice", arg: [][]int{{1}, {2, 3}}, want: "slice[2]:{slice[1]:{1},slice[2]:{2,3}}"},
		{name: "array", arg: [2]int{1, 2}, want: "array[2]:{1,2}"},
		{name: "map sorted", arg: map[string]int{"b": 2, "a": 1}, want: `map[2]:{"a"=1,"b"=2}`},
		{name: "struct skips unexported", arg: listParams{Page: 2, Order: "price", note: "x"}, want: `listParams{Page:2,Order:"price"}`},
		{name: "pointer dereferenced", arg: &listParams{Page: 1}, want: `listParams{Page:1,Order:""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializer.SerializeValue(tt.arg); got != tt.want {
				t.Errorf("SerializeValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_NoCollisionsAcrossBoundaries(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := serializer.SerializeValue([]string{"a,b", "c"})
	b := serializer.SerializeValue([]string{"a", "b,c"})
	if a == b {
		t.Errorf("expected distinct keys for distinct element boundaries, both were %s", a)
	}

	c := serializer.SerializeValue(map[string]string{"a": "1,b=2"})
	d := serializer.SerializeValue(map[string]string{"a": "1", "b": "2"})
	if c == d {
		t.Errorf("expected distinct keys for forged map entries, both were %s", c)
	}
}

func TestDefaultKeySerializer_TopLevelStrings(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name string
		arg  string
		want string
	}{
		{name: "plain", arg: "list", want: "list"},
		{name: "code", arg: "x-1", want: "x-1"},
		{name: "number", arg: "1", want: `"1"`},
		{name: "float", arg: "3.5", want: `"3.5"`},
		{name: "infinity", arg: "+Inf", want: `"+Inf"`},
		{name: "bool", arg: "true", want: `"true"`},
		{name: "nil", arg: "nil", want: `"nil"`},
		{name: "empty", arg: "", want: `""`},
		{name: "composite", arg: "slice[0]:{}", want: `"slice[0]:{}"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializer.SerializeValue(tt.arg); got != tt.want {
				t.Errorf("SerializeValue(%q) = %v, want %v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_StringsNeverMatchOtherKinds(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	pairs := []struct {
		value any
		str   string
	}{
		{int64(1), "1"},
		{nil, "nil"},
		{true, "true"},
		{3.5, "3.5"},
		{[]int{}, "slice[0]:{}"},
		{(map[string]int)(nil), "map:nil"},
	}

	for _, p := range pairs {
		a, b := serializer.SerializeValue(p.value), serializer.SerializeValue(p.str)
		if a == b {
			t.Errorf("%#v and %q both serialize to %s", p.value, p.str, a)
		}
	}
}

func TestDefaultKeySerializer_Deterministic(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	value := map[string][]string{
		"manufacturer": {"3", "7"},
		"price_min":    {"10"},
		"category":     {"12"},
	}

	first := serializer.SerializeKey("products", "list", value)
	for i := 0; i < 50; i++ {
		if got := serializer.SerializeKey("products", "list", value); got != first {
			t.Fatalf("iteration %d produced %s, want %s", i, got, first)
		}
	}
}
