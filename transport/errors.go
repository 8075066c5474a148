package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/identity"
)

// APIError is a non-2xx storefront response. Validation failures carry the
// offending fields.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("transport: %s %s: %d %s", e.Method, e.Path, e.Status, msg)
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fmt.Sprintf("transport: %s %s: %d %s (fields: %s)", e.Method, e.Path, e.Status, msg, strings.Join(fields, ", "))
}

// Is maps statuses onto the sentinels the caches classify by.
func (e *APIError) Is(target error) bool {
	switch target {
	case cache.ErrNotFound:
		return e.IsNotFound()
	case identity.ErrUnauthorized:
		return e.IsUnauthorized()
	}
	return false
}

// IsNotFound reports a 404 or 410.
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusGone
}

// IsUnauthorized reports a missing or rejected credential.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsRetryable reports server failures and throttling.
func (e *APIError) IsRetryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// FieldErrors returns the messages reported for field.
func (e *APIError) FieldErrors(field string) []string {
	return e.Fields[field]
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// Retryable is the read retry policy for storefront errors: client errors,
// cancellation and an open breaker are final.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}
