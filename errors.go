package tablekit

import (
	"errors"
	"fmt"

	"github.com/tablekit/tablekit/dberr"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a single-record operation matches no row.
	ErrNotFound = errors.New("tablekit: record not found")

	// ErrMethodNotAllowed is returned when a bulk operation is attempted
	// without the corresponding multi-record permission.
	ErrMethodNotAllowed = errors.New("tablekit: method not allowed")

	// ErrInvalidConfig is returned by NewService for unusable options.
	ErrInvalidConfig = errors.New("tablekit: invalid configuration")
)

// NotFoundError reports that a single-record get, patch, update or remove
// matched no row. It names the identifier field and the attempted value.
type NotFoundError struct {
	Table string
	Field string
	ID    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tablekit: no record found for %s %s=%v", e.Table, e.Field, e.ID)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(err, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ValidationError reports a malformed query or payload detected before any
// SQL was issued, e.g. a non-array value handed to an array operator.
type ValidationError struct {
	Name string // Operator, field or option name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tablekit: validation failed for %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given name.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// MethodNotAllowedError reports a bulk patch, remove or create attempted
// without the matching multi-record permission flag.
type MethodNotAllowedError struct {
	Method string
}

// Error returns the error string.
func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("tablekit: %s by query is not allowed, enable the multi permission", e.Method)
}

// Is reports whether the target error matches MethodNotAllowedError.
func (e *MethodNotAllowedError) Is(err error) bool {
	return err == ErrMethodNotAllowed
}

// IsMethodNotAllowed returns true if the error is a MethodNotAllowedError.
func IsMethodNotAllowed(err error) bool {
	if err == nil {
		return false
	}
	var e *MethodNotAllowedError
	return errors.As(err, &e) || errors.Is(err, ErrMethodNotAllowed)
}

// ConfigError reports an unusable construction option. It fails NewService
// synchronously and is never raised at operation time.
type ConfigError struct {
	Option string
	Err    error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("tablekit: option %q: %s", e.Option, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ConfigError.
func (e *ConfigError) Is(err error) bool {
	return err == ErrInvalidConfig
}

// ConstraintError wraps a database constraint violation surfaced by the
// engine, classified by kind (unique, foreign key, check, not null).
type ConstraintError struct {
	kind dberr.Kind
	wrap error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("tablekit: %s constraint failed: %s", e.kind, e.wrap)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// Kind returns the constraint classification.
func (e *ConstraintError) Kind() dberr.Kind {
	return e.kind
}

// IsConstraint returns true if the error is a ConstraintError.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// translateError maps low-level database errors into the adapter taxonomy.
// Constraint violations become ConstraintError; everything else passes
// through untouched. The adapter never swallows or retries database errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if kind := dberr.KindOf(err); kind != dberr.Unknown {
		return &ConstraintError{kind: kind, wrap: err}
	}
	return err
}
