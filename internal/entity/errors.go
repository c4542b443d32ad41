package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for standardized adapter responses. Adapters translate
// the typed errors below into protocol-specific payloads using these
// codes — the core never formats an HTTP or MCP response itself.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeTimeout    = "TIMEOUT"
	ErrCodeMalformed  = "MALFORMED_DOCUMENT"
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

// Violation is a single violated validation rule, tied to the field
// that broke it.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports structural or field rule violations. It
// accumulates every violated rule, not just the first, so callers can
// surface the full list in one round trip.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

// Addf appends a violation for the given field.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// OrNil returns the error if any violations were recorded, otherwise
// nil. Returning nil directly avoids the classic non-nil interface
// wrapping a nil pointer.
func (e *ValidationError) OrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// Fields returns the distinct field names with violations, in order
// of first occurrence.
func (e *ValidationError) Fields() []string {
	seen := map[string]bool{}
	var fields []string
	for _, v := range e.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			fields = append(fields, v.Field)
		}
	}
	return fields
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NotFoundError reports that an identifier does not resolve.
type NotFoundError struct {
	Resource string `json:"resource"` // "entity" or "dependency"
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ConflictError reports a commit-time invariant violation under
// concurrency, or a cascade-policy refusal. Conflicts are retryable
// by the caller.
type ConflictError struct {
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (e *ConflictError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("conflict on %q: %s", e.ID, e.Reason)
	}
	return "conflict: " + e.Reason
}

// TimeoutError reports that the storage boundary deadline was
// exceeded. The operation performed no partial mutation.
type TimeoutError struct {
	Op string `json:"op"`
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out", e.Op)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
