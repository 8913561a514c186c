// Package apperror provides structured errors for the redistricting engine:
// a stable code, a severity and optional details for audit output. ExitCode
// maps codes onto CLI exit statuses.
package apperror

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Input
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
	CodeEmptyGraph         ErrorCode = "EMPTY_GRAPH"
	CodeDuplicateNode      ErrorCode = "DUPLICATE_NODE"
	CodeDuplicateEdge      ErrorCode = "DUPLICATE_EDGE"
	CodeDanglingEdge       ErrorCode = "DANGLING_EDGE"
	CodeSelfLoop           ErrorCode = "SELF_LOOP"
	CodeNegativeWeight     ErrorCode = "NEGATIVE_WEIGHT"
	CodeNegativePopulation ErrorCode = "NEGATIVE_POPULATION"
	CodeMissingLabel       ErrorCode = "MISSING_LABEL"
	CodeNilInput           ErrorCode = "NIL_INPUT"

	// Engine
	CodeRepairDidNotConverge ErrorCode = "REPAIR_DID_NOT_CONVERGE"
	CodeSeedingInfeasible    ErrorCode = "SEEDING_INFEASIBLE"
	CodeIsolatedComponent    ErrorCode = "ISOLATED_COMPONENT"
	CodePostcondition        ErrorCode = "POSTCONDITION_FAILED"
	CodeCancelled            ErrorCode = "CANCELLED"

	// General
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeInvalidPagination ErrorCode = "INVALID_PAGINATION"
	CodeUnavailable       ErrorCode = "UNAVAILABLE"
	CodeUnimplemented     ErrorCode = "UNIMPLEMENTED"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	// SeverityWarning marks an issue that does not stop a run.
	SeverityWarning Severity = iota
	// SeverityError marks a failed operation.
	SeverityError
	// SeverityCritical marks a broken internal invariant.
	SeverityCritical
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is the application error type.
type Error struct {
	Code     ErrorCode      // Code is a stable identifier for the failure kind.
	Message  string         // Message is a human-readable description.
	Field    string         // Field names the offending input field, if any.
	Details  map[string]any // Details carries structured diagnostics.
	Cause    error          // Cause is the underlying error.
	Severity Severity       // Severity indicates the criticality level.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// Newf creates an error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithField creates an error bound to an input field.
func NewWithField(code ErrorCode, message, field string) *Error {
	e := New(code, message)
	e.Field = field
	return e
}

// NewWarning creates an error with SeverityWarning.
func NewWarning(code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Severity = SeverityWarning
	return e
}

// NewCritical creates an error with SeverityCritical.
func NewCritical(code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Severity = SeverityCritical
	return e
}

// Wrap creates an error that wraps cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithDetails adds a key-value pair to the details map.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithField sets the offending field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSeverity sets the severity level.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is an application error with the given code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from err, CodeInternal for foreign errors.
func Code(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// ExitCode maps an error onto a process exit status for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Code(err) {
	case CodeInvalidInput, CodeInvalidConfig, CodeEmptyGraph, CodeDuplicateNode,
		CodeDuplicateEdge, CodeDanglingEdge, CodeSelfLoop, CodeNegativeWeight,
		CodeNegativePopulation, CodeMissingLabel, CodeNilInput, CodeInvalidArgument:
		return 2
	case CodeRepairDidNotConverge:
		return 3
	case CodeSeedingInfeasible:
		return 4
	case CodeIsolatedComponent:
		return 5
	case CodeCancelled:
		return 130
	default:
		return 1
	}
}

// IsWarning reports whether err carries SeverityWarning.
func IsWarning(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// IsCritical reports whether err carries SeverityCritical.
func IsCritical(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// Predefined errors. Callers must not mutate them; use New for errors with details.
var (
	ErrNilGraph   = New(CodeNilInput, "graph is nil")
	ErrEmptyGraph = New(CodeEmptyGraph, "graph is empty")
	ErrNotFound   = New(CodeNotFound, "resource not found")
)

// ValidationErrors aggregates errors and warnings from several checks.
type ValidationErrors struct {
	Errors   []*Error
	Warnings []*Error
}

// NewValidationErrors returns an empty collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors:   make([]*Error, 0),
		Warnings: make([]*Error, 0),
	}
}

// Add appends err to Errors or Warnings depending on its severity.
func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
	} else {
		v.Errors = append(v.Errors, err)
	}
}

// AddError adds a new SeverityError entry.
func (v *ValidationErrors) AddError(code ErrorCode, message string) {
	v.Errors = append(v.Errors, New(code, message))
}

// AddWarning adds a new SeverityWarning entry.
func (v *ValidationErrors) AddWarning(code ErrorCode, message string) {
	v.Warnings = append(v.Warnings, NewWarning(code, message))
}

// AddErrorWithField adds a new error bound to a field.
func (v *ValidationErrors) AddErrorWithField(code ErrorCode, message, field string) {
	v.Errors = append(v.Errors, NewWithField(code, message, field))
}

// HasErrors reports whether any errors were collected.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// HasWarnings reports whether any warnings were collected.
func (v *ValidationErrors) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// IsValid reports whether no errors were collected.
func (v *ValidationErrors) IsValid() bool {
	return !v.HasErrors()
}

// First returns the first collected error or nil.
func (v *ValidationErrors) First() *Error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}

// Merge appends all entries of other.
func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// ErrorMessages returns the formatted errors.
func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Error()
	}
	return messages
}

// WarningMessages returns the warning messages.
func (v *ValidationErrors) WarningMessages() []string {
	messages := make([]string, len(v.Warnings))
	for i, warn := range v.Warnings {
		messages[i] = warn.Message
	}
	return messages
}
