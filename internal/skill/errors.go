// ABOUTME: Coded error taxonomy for skill execution. Retry eligibility is a
// ABOUTME: property of the code, never of the call site that observed it.
package skill

import (
	"context"
	"errors"
	"fmt"
)

// Error codes. Everything except CodeExecution is non-retryable.
const (
	// CodeValidation: precondition check failed; per-field detail attached.
	CodeValidation = "VALIDATION_ERROR"
	// CodeFormulaValidation: persisted config disagrees with compiled
	// canonical constants. Treated as a deployment bug — the run halts
	// rather than computing with wrong formula inputs.
	CodeFormulaValidation = "FORMULA_VALIDATION_ERROR"
	// CodeNotFound: the subject record or a required dependency is missing.
	CodeNotFound = "NOT_FOUND"
	// CodeInvalidJobType: job type outside the closed enum.
	CodeInvalidJobType = "INVALID_JOB_TYPE"
	// CodeCancelled: execution observed cancellation at a checkpoint.
	// Terminal state is cancelled, not failed.
	CodeCancelled = "CANCELLED"
	// CodeExecution: transient failure (network, provider timeout).
	// Retryable up to the job's attempt budget.
	CodeExecution = "EXECUTION_ERROR"
)

// Error is a coded skill execution error. Details carries structured context
// (field errors, constant mismatches) for operator diagnostics; users see
// only code and message.
type Error struct {
	Code    string
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// RetryableCode reports whether an error code should be retried with
// backoff. The worker uses this on persisted result codes; it is the single
// place the code-to-retry rule lives.
func RetryableCode(code string) bool {
	return code == CodeExecution
}

// Retryable reports whether err should be retried with backoff. Only
// transient execution errors qualify; unrecognized errors are treated as
// transient so an unexpected provider failure is not silently terminal.
func Retryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return RetryableCode(se.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// CodeOf extracts the error code, mapping unknown errors to CodeExecution
// and context cancellation to CodeCancelled.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}
	return CodeExecution
}

// FieldError is one failed validation check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError builds a VALIDATION_ERROR carrying every field error.
func NewValidationError(fieldErrors []FieldError) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf("validation failed with %d error(s)", len(fieldErrors)),
		Details: map[string]any{"errors": fieldErrors},
	}
}

// NewFormulaValidationError builds a FORMULA_VALIDATION_ERROR listing each
// mismatched constant.
func NewFormulaValidationError(skillName string, mismatches map[string]string) *Error {
	return &Error{
		Code:    CodeFormulaValidation,
		Message: fmt.Sprintf("skill %q configuration disagrees with canonical constants", skillName),
		Details: map[string]any{"mismatches": mismatches},
	}
}

// NewNotFoundError builds a NOT_FOUND error for a missing record.
func NewNotFoundError(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
	}
}

// NewCancelledError builds a CANCELLED error. Skills raise it from
// cancellation checkpoints.
func NewCancelledError(step string) *Error {
	return &Error{
		Code:    CodeCancelled,
		Message: "execution cancelled",
		Details: map[string]any{"at": step},
	}
}

// NewExecutionError wraps a transient failure.
func NewExecutionError(msg string, cause error) *Error {
	return &Error{Code: CodeExecution, Message: msg, cause: cause}
}
