package simplepublish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrUnitNotFound indicates a content unit was not found
	ErrUnitNotFound = errors.New("content unit not found")

	// ErrVersionNotFound indicates a version snapshot was not found
	ErrVersionNotFound = errors.New("version snapshot not found")

	// ErrSlugConflict indicates the slug is already taken within its kind
	ErrSlugConflict = errors.New("slug already in use for this kind")

	// ErrPublishConflict indicates a publish lost a concurrent version race
	ErrPublishConflict = errors.New("publish conflict: unit version changed concurrently")

	// ErrReorderConflict indicates a reorder batch is inconsistent with its scope
	ErrReorderConflict = errors.New("reorder batch conflicts with scope")

	// ErrHasChildren indicates a delete was blocked because child units exist
	ErrHasChildren = errors.New("unit has children; delete requires cascade")

	// ErrInvalidKind indicates an unknown unit kind
	ErrInvalidKind = errors.New("invalid unit kind")
)

// FieldViolation describes a single schema violation inside a content payload.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violated field of a content payload. The
// engine never coerces or drops invalid fields silently.
type ValidationError struct {
	Kind   UnitKind
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("invalid %s content: %s", e.Kind, strings.Join(msgs, ", "))
}

// Add appends a violation for the given field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldViolation{Field: field, Message: message})
}

// HasViolations reports whether any field violations were recorded.
func (e *ValidationError) HasViolations() bool {
	return len(e.Fields) > 0
}

// UnitError represents an error related to a content unit operation
type UnitError struct {
	UnitID uuid.UUID
	Op     string
	Err    error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit operation %s failed for unit %s: %v", e.Op, e.UnitID, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// StorageError represents a failed or aborted storage transaction. It is
// always surfaced to the caller; the engine never retries internally.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
