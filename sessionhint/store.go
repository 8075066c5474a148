// Package sessionhint keeps small session scoped values used to recover after
// a reload, such as the last created order. Hints are never a source of truth.
package sessionhint

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// Well known hint keys.
const (
	LastOrderID     = "last_order_id"
	LastCatalogPath = "last_catalog_path"
)

// Store persists hints for the lifetime of a session.
type Store interface {
	// Get decodes the hint under key into dst, reporting whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store. Values are msgpack encoded so callers never
// share memory with what they stored.
type Memory struct {
	values *xsync.MapOf[string, []byte]
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{values: xsync.NewMapOf[string, []byte]()}
}

func (m *Memory) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := m.values.Load(key)
	if !ok {
		return false, nil
	}
	if err := msgpack.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("sessionhint: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Put(ctx context.Context, key string, value any) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("sessionhint: encode %s: %w", key, err)
	}
	m.values.Store(key, raw)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.values.Delete(key)
	return nil
}

// Len returns the number of stored hints.
func (m *Memory) Len() int { return m.values.Size() }
