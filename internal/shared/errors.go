package shared

import (
	"fmt"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/httpx"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = httpx.ErrNotFound

// ValidationError reports a malformed input field. Validation errors are
// raised before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap maps the error to the transport-level validation sentinel.
func (e *ValidationError) Unwrap() error { return httpx.ErrValidation }

// Validationf builds a field-scoped validation error.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports a mutation that would break a ledger invariant
// (negative counter, over-delivery, dependent children). The transaction is
// rolled back and the caller must resolve manually.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Unwrap maps the error to the transport-level conflict sentinel.
func (e *ConflictError) Unwrap() error { return httpx.ErrConflict }

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// BatchResult reports one row's outcome inside an explicitly batch
// operation. Batch endpoints never fail atomically; each row carries its
// own result.
type BatchResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
