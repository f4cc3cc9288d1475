package generate

import (
	"fmt"
	"strings"
)

// MissingRequiredFieldError is returned before any capability call when the
// lead lacks the inputs generation needs. Cost control: never pay for a
// call that cannot produce a usable result.
type MissingRequiredFieldError struct {
	Fields []string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("lead missing required fields: %s", strings.Join(e.Fields, ", "))
}

// SchemaViolationError is returned when the capability's raw output cannot
// be parsed into the personalisation result schema. Violations lists every
// check that failed, not just the first.
type SchemaViolationError struct {
	Violations []string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("generation output violates schema: %s", strings.Join(e.Violations, "; "))
}

// CapabilityErrorKind classifies capability-level faults.
type CapabilityErrorKind string

const (
	CapabilityTimeout     CapabilityErrorKind = "timeout"
	CapabilityUnavailable CapabilityErrorKind = "unavailable"
)

// CapabilityError wraps a fault in the upstream generation service itself,
// as opposed to a content judgment on its output.
type CapabilityError struct {
	Kind CapabilityErrorKind
	Err  error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("generation capability %s: %v", e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
