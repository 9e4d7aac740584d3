package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the deterministic risk core. Sizer and planner errors
// are recoverable decision-rejections: the caller skips the decision and
// moves on. Grader errors are invariant violations and must not be swallowed.
var (
	// ErrInsufficientCapacity means the account has no remaining capacity
	// for a new allocation. The decision should be skipped, not retried.
	ErrInsufficientCapacity = errors.New("insufficient account capacity")

	// ErrBelowMinNotional means the intended allocation is smaller than the
	// exchange minimum notional. The decision should be skipped.
	ErrBelowMinNotional = errors.New("allocation below minimum notional")

	// ErrInvalidLevelGeometry means even the percentage fallback produced an
	// inverted stop/target ordering. This indicates broken configuration and
	// must never be silently proceeded past.
	ErrInvalidLevelGeometry = errors.New("invalid stop/target geometry")

	// ErrAlreadyGraded means Grade was invoked a second time on a closed
	// record. This is an ordering bug in the caller, never expected in
	// correct usage.
	ErrAlreadyGraded = errors.New("trade already graded")
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Critical errors that should stop the guardian
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryInvariant     ErrorCategory = "INVARIANT"

	// Recoverable, per-decision errors
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategorySizing     ErrorCategory = "SIZING"
	ErrorCategoryPlanning   ErrorCategory = "PLANNING"
	ErrorCategoryPosition   ErrorCategory = "POSITION"
	ErrorCategoryGrading    ErrorCategory = "GRADING"

	// Infrastructure errors outside the deterministic core
	ErrorCategoryJournal      ErrorCategory = "JOURNAL"
	ErrorCategoryFeed         ErrorCategory = "FEED"
	ErrorCategoryNotification ErrorCategory = "NOTIFICATION"
)

// GuardianError represents a categorized error with component context
type GuardianError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Fatal      bool
}

// Error implements the error interface
func (e *GuardianError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s in %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s in %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *GuardianError) Unwrap() error {
	return e.Underlying
}

// IsFatal returns whether this error should stop processing entirely.
// Invariant and configuration errors are never safe to continue past.
func (e *GuardianError) IsFatal() bool {
	return e.Fatal ||
		e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryConfiguration ||
		e.Category == ErrorCategoryInvariant
}

// New creates a new categorized guardian error
func New(category ErrorCategory, component, operation, message string) *GuardianError {
	return &GuardianError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap wraps an existing error with guardian error context
func Wrap(err error, category ErrorCategory, component, operation string) *GuardianError {
	if err == nil {
		return nil
	}
	return &GuardianError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// IsRejection reports whether err is a recoverable decision-rejection
// (skip the decision) as opposed to a defect that must surface.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientCapacity) || errors.Is(err, ErrBelowMinNotional)
}

// NewValidationError builds a non-fatal validation error
func NewValidationError(component, operation, message string) *GuardianError {
	return New(ErrorCategoryValidation, component, operation, message)
}

// NewConfigurationError builds a fatal configuration error
func NewConfigurationError(component, operation, message string) *GuardianError {
	e := New(ErrorCategoryConfiguration, component, operation, message)
	e.Fatal = true
	return e
}

// NewInvariantError wraps an invariant violation; processing of the
// offending record must halt rather than produce divergent state.
func NewInvariantError(component, operation string, err error) *GuardianError {
	e := Wrap(err, ErrorCategoryInvariant, component, operation)
	e.Fatal = true
	return e
}
