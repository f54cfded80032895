// Package apperr defines the error taxonomy of the sync engine. Callers are
// expected to branch on these types with errors.As / errors.Is instead of
// string matching, and handlers map them onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: negative quantities, missing
// manual-resolution values, bad enum values. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError is returned when a reservation asks for more than
// the current availability. The attempt performs no mutation.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// NotFoundError reports an unknown item, job, store or mapping.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// ConflictError reports an unresolved sync divergence or a rejected attempt
// to start a second active job of the same type. Never auto-retried; it
// requires an explicit resolution (or a later re-run).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

func Conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

// ConcurrencyError surfaces only after the per-item lock/version retry
// budget is exhausted. Chronic contention, not a caller mistake.
type ConcurrencyError struct {
	Resource string
}

func (e *ConcurrencyError) Error() string {
	return "concurrent modification on " + e.Resource + ": retries exhausted"
}

// ExternalPlatformError wraps a failed adapter call. Retryable failures
// (timeouts, 5xx, rate-limit signals) are retried inside the orchestrator
// and only surface after the backoff budget runs out.
type ExternalPlatformError struct {
	Platform  string
	Op        string
	Retryable bool
	Err       error
}

func (e *ExternalPlatformError) Error() string {
	return fmt.Sprintf("platform %s: %s: %v", e.Platform, e.Op, e.Err)
}

func (e *ExternalPlatformError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a platform failure worth retrying.
func IsRetryable(err error) bool {
	var pe *ExternalPlatformError
	return errors.As(err, &pe) && pe.Retryable
}
