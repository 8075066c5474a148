package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// Segmenter is implemented by values that know their own canonical key segment.
// The serializer uses KeySegment verbatim instead of reflecting over the value.
type Segmenter interface {
	KeySegment() string
}

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// Strings nested inside composite values are quoted so that element boundaries
// can never be forged by the data itself.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from domain name and args using reflection.
func (s *defaultKeySerializer) SerializeKey(domain string, args ...any) string {
	if len(args) == 0 {
		return domain
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, domain)
	for _, arg := range args {
		parts = append(parts, s.SerializeValue(arg))
	}

	return strings.Join(parts, KeySeparator)
}

// SerializeValue renders a single discriminator. Top level strings are kept
// as is unless they could read as another rendering ("1", "true", "nil",
// "slice[...]"), in which case they are quoted like nested strings.
func (s *defaultKeySerializer) SerializeValue(v any) string {
	if str, ok := v.(string); ok {
		if ambiguous(str) {
			return strconv.Quote(str)
		}
		return str
	}
	return s.serializeValue(v)
}

// ambiguous reports whether a raw string could equal the rendering of a
// non-string value: a number, a bool, nil, or a composite.
func ambiguous(str string) bool {
	switch str {
	case "", "true", "false", "nil":
		return true
	}
	if strings.ContainsAny(str, `"{[(:`) {
		return true
	}
	_, err := strconv.ParseComplex(str, 128)
	return err == nil
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	if seg, ok := v.(Segmenter); ok {
		return seg.KeySegment()
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return s.serializeSequence("slice", rv)
	case reflect.Array:
		return s.serializeSequence("array", rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv, rt)
	case reflect.String:
		return strconv.Quote(rv.String())
	}

	if isBasicType(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

// serializeSequence handles slices and arrays recursively.
func (s *defaultKeySerializer) serializeSequence(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap handles map serialization with sorted keys for determinism.
func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	type pair struct {
		key   string
		value string
	}

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   s.serializeValue(iter.Key().Interface()),
			value: s.serializeValue(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	rendered := make([]string, len(pairs))
	for i, p := range pairs {
		rendered[i] = p.key + "=" + p.value
	}

	return fmt.Sprintf("map[%d]:{%s}", len(rendered), strings.Join(rendered, ","))
}

// serializeStruct handles struct serialization with field names.
func (s *defaultKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, field.Name+":"+s.serializeValue(fieldValue.Interface()))
	}

	return fmt.Sprintf("%s{%s}", rt.Name(), strings.Join(parts, ","))
}

// isBasicType checks if a kind represents a basic Go type.
func isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort.
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", reflect.TypeOf(v).String())
	}
	return "json:" + string(data)
}
