// ABOUTME: The execution envelope every skill run passes through:
// ABOUTME: validate → progress → body → normalize errors → timing metadata.
package skill

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Run executes s against ec inside the shared envelope. It never returns an
// error: every failure mode — validation, cancellation, typed skill errors,
// unknown errors, panics in the algorithm body — is normalized into the
// returned Result. This is what lets the executor stay algorithm-agnostic.
func Run(ctx context.Context, s Skill, ec *Context) *Result {
	start := time.Now()
	res := &Result{
		Metadata: Metadata{
			SkillName:    s.Name(),
			SkillVersion: s.Version(),
			ExecutedAt:   start.UTC(),
		},
	}
	finish := func() *Result {
		res.Metadata.DurationMS = time.Since(start).Milliseconds()
		if u := ec.Usage(); !u.zero() {
			res.Metadata.ResourceUsage = &u
		}
		return res
	}

	// Preconditions: base checks plus the skill's own. Invalid input
	// short-circuits with every field error attached — the algorithm body
	// must not run.
	vr := baseValidate(ec)
	if v, ok := s.(Validator); ok {
		vr = vr.Merge(v.Validate(ec))
	}
	if !vr.Valid {
		res.Error = ErrorDetailOf(NewValidationError(vr.Errors))
		return finish()
	}

	ec.ReportProgress(0, "starting")

	data, err := runBody(ctx, s, ec)
	if err != nil {
		res.Error = ErrorDetailOf(err)
		return finish()
	}

	ec.ReportProgress(100, "completed")
	res.Success = true
	res.Data = data
	return finish()
}

// runBody invokes the algorithm, converting a panic into an error so one
// misbehaving skill cannot take down the worker.
func runBody(ctx context.Context, s Skill, ec *Context) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = NewExecutionError(fmt.Sprintf("skill %s panicked: %v", s.Name(), p), nil)
		}
	}()
	return s.Execute(ctx, ec)
}

// ErrorDetailOf normalizes any error into the serializable result shape.
// Known typed errors keep their code; context cancellation becomes CANCELLED;
// everything else is EXECUTION_ERROR.
func ErrorDetailOf(err error) *ErrorDetail {
	var se *Error
	if errors.As(err, &se) {
		return &ErrorDetail{Code: se.Code, Message: se.Message, Details: se.Details}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ErrorDetail{Code: CodeCancelled, Message: "execution cancelled"}
	}
	return &ErrorDetail{Code: CodeExecution, Message: err.Error()}
}
