// Package keyspace is the only place allowed to build cache keys.
//
// A Key is an ordered, immutable tuple (domain, subdomain?, discriminators...).
// Keys form a prefix tree: invalidating For("products") reaches every key built
// with "products" as its first segment. Everything here is pure.
package keyspace

import (
	"strings"

	"github.com/goliatone/go-storefront-cache/cache"
)

// Discriminator lets a value supply its own canonical key segment.
type Discriminator = cache.Segmenter

var serializer = cache.NewDefaultKeySerializer()

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "#", "%23")

// Key addresses one cached server read or, used as a prefix, a family of reads.
type Key struct {
	segments []string
}

// For builds the key for domain plus discriminators. Equal arguments always
// produce equal keys.
func For(domain string, discriminators ...any) Key {
	segments := make([]string, 0, len(discriminators)+1)
	segments = append(segments, domain)
	for _, d := range discriminators {
		segments = append(segments, serializer.SerializeValue(d))
	}
	return Key{segments: segments}
}

// Domain returns the first segment.
func (k Key) Domain() string {
	if len(k.segments) == 0 {
		return ""
	}
	return k.segments[0]
}

// Segments returns a copy of the key segments.
func (k Key) Segments() []string {
	return append([]string(nil), k.segments...)
}

// Len returns the number of segments.
func (k Key) Len() int { return len(k.segments) }

// IsZero reports whether k was never built.
func (k Key) IsZero() bool { return len(k.segments) == 0 }

// Equal reports whether both keys have identical segments.
func (k Key) Equal(other Key) bool {
	if len(k.segments) != len(other.segments) {
		return false
	}
	for i := range k.segments {
		if k.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a segment-wise prefix of k. Every key has
// itself as a prefix; the zero key is a prefix of everything.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.segments) > len(k.segments) {
		return false
	}
	for i := range prefix.segments {
		if k.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// String renders the key with escaped segments joined by cache.KeySeparator.
// Distinct keys never render to the same string.
func (k Key) String() string {
	escaped := make([]string, len(k.segments))
	for i, s := range k.segments {
		escaped[i] = segmentEscaper.Replace(s)
	}
	return strings.Join(escaped, cache.KeySeparator)
}

// StoragePrefix is the string every descendant of k starts with once rendered.
func (k Key) StoragePrefix() string {
	if k.IsZero() {
		return ""
	}
	return k.String() + cache.KeySeparator
}
