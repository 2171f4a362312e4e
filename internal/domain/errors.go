package domain

import (
	"errors"
	"fmt"
)

// Common domain errors returned by electoral operations.
var (
	// ErrInvalidDistrictResult indicates that a DistrictResult breaks its
	// referential or arithmetic invariants. It is a contract violation by
	// the collaborator that produced the result.
	ErrInvalidDistrictResult = errors.New("invalid district result")

	// ErrUnknownDistrict indicates that a district identifier is not part
	// of the configured seat table.
	ErrUnknownDistrict = errors.New("unknown district")

	// ErrInvalidScenario indicates that a scenario definition is incomplete.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// DistrictError represents an error that occurred while processing a
// single district. It provides context about which district and operation
// caused the error.
type DistrictError struct {
	// DistrictID is the district that was being processed.
	DistrictID string

	// Operation describes what was being performed, such as "fetch" or
	// "allocate".
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for DistrictError.
func (e *DistrictError) Error() string {
	return fmt.Sprintf("district error: operation=%s, district=%s, err=%v", e.Operation, e.DistrictID, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *DistrictError) Unwrap() error { return e.Err }

// NewDistrictError creates a new DistrictError with the given details.
func NewDistrictError(districtID, operation string, err error) *DistrictError {
	return &DistrictError{
		DistrictID: districtID,
		Operation:  operation,
		Err:        err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string

	// kind is the sentinel error this validation failure maps to.
	kind error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns the sentinel error the validation failure belongs to.
func (e *ValidationError) Unwrap() error { return e.kind }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf adds a formatted error message to the validation error.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
// The kind sentinel is what errors.Is matches against; nil is allowed.
func NewValidationError(entity string, kind error) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
		kind:   kind,
	}
}
