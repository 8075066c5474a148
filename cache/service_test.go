package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockCacheService for testing the typed wrappers
type mockCacheService struct {
	result any
	err    error
	stored map[string]any
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	return m.result, m.err
}

func (m *mockCacheService) Get(ctx context.Context, key string) (any, bool) {
	v, ok := m.stored[key]
	return v, ok
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error {
	delete(m.stored, key)
	return nil
}

func (m *mockCacheService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return nil
}

func (m *mockCacheService) InvalidateKeys(ctx context.Context, keys []string) error {
	return nil
}

func TestGetOrFetch_NilInterfaceResult(t *testing.T) {
	mock := &mockCacheService{result: nil}

	type Identity interface {
		ID() int64
	}

	result, err := GetOrFetch[Identity](context.Background(), mock, "session", func(ctx context.Context) (Identity, error) {
		return nil, nil
	})

	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}

	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_NilPointerNoPanic(t *testing.T) {
	mock := &mockCacheService{result: (*string)(nil)}

	result, err := GetOrFetch[*string](context.Background(), mock, "session", func(ctx context.Context) (*string, error) {
		return nil, nil
	})

	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}

	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypeAssertionFailure(t *testing.T) {
	mock := &mockCacheService{result: "wrong-type"}

	result, err := GetOrFetch[int](context.Background(), mock, "basket::1", func(ctx context.Context) (int, error) {
		return 42, nil
	})

	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}

	if result != 0 {
		t.Errorf("expected zero value (0) but got: %v", result)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	mock := &mockCacheService{err: ErrNotFound}

	_, err := GetOrFetch[string](context.Background(), mock, "products::detail::x", func(ctx context.Context) (string, error) {
		return "", nil
	})

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound but got: %v", err)
	}
}

func TestGet_Typed(t *testing.T) {
	mock := &mockCacheService{stored: map[string]any{
		"basket::1": 7,
		"session":   nil,
		"favorites": "ids",
	}}
	ctx := context.Background()

	if v, ok := Get[int](ctx, mock, "basket::1"); !ok || v != 7 {
		t.Errorf("expected 7, got %v (%v)", v, ok)
	}

	if v, ok := Get[*int](ctx, mock, "session"); !ok || v != nil {
		t.Errorf("expected stored nil to be present, got %v (%v)", v, ok)
	}

	if _, ok := Get[int](ctx, mock, "favorites"); ok {
		t.Error("expected type mismatch to be reported as absent")
	}

	if _, ok := Get[int](ctx, mock, "missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestFingerprint(t *testing.T) {
	type item struct {
		ProductID int64
		Quantity  int
	}

	a, ok := Fingerprint([]item{{ProductID: 1, Quantity: 2}})
	if !ok {
		t.Fatal("expected fingerprint to be computed")
	}

	b, _ := Fingerprint([]item{{ProductID: 1, Quantity: 2}})
	if a != b {
		t.Error("expected equal payloads to share a fingerprint")
	}

	c, _ := Fingerprint([]item{{ProductID: 1, Quantity: 3}})
	if a == c {
		t.Error("expected different payloads to differ")
	}

	if _, ok := Fingerprint(make(chan int)); ok {
		t.Error("expected channels to be rejected")
	}
}

func TestNewCacheService_Config(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() should be valid, got %v", err)
	}

	service, err := NewCacheService(cfg)
	if err != nil {
		t.Fatalf("NewCacheService() failed: %v", err)
	}
	ctx := context.Background()
	if _, err := GetOrFetch[int](ctx, service, "session", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("GetOrFetch() failed: %v", err)
	}
	if v, ok := Get[int](ctx, service, "session"); !ok || v != 1 {
		t.Errorf("Expected stored value 1, got %v (%v)", v, ok)
	}

	cfg.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: time.Second, MaxAsyncRefreshTime: time.Millisecond}
	if _, err := NewCacheService(cfg); err == nil {
		t.Error("Expected inverted early refresh window to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Capacity = 0
	if _, err := NewCacheService(cfg); err == nil {
		t.Error("Expected zero capacity to be rejected")
	}
}
