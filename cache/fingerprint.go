package cache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Fingerprint returns a digest of v's msgpack encoding. Two reads returning the
// same payload share a fingerprint, which lets observers skip no-op updates.
// The boolean is false when v cannot be encoded; callers must then treat the
// value as changed.
func Fingerprint(v any) (uint64, bool) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(data), true
}
