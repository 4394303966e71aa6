// Package skill defines the uniform contract every analysis algorithm plugs
// into: a named Skill with an execute/validate surface, a registry that
// resolves and checks configuration, and an execution wrapper that gives
// heterogeneous algorithms one result/error/progress shape.
package skill

import "context"

// Skill is a pluggable, named implementation of one domain algorithm.
// Implementations must be safe for concurrent use; all per-invocation state
// lives in the Context.
type Skill interface {
	Name() string
	Version() string
	Description() string

	// Execute runs the algorithm body. Long-running implementations check
	// ctx at defined checkpoints and return a CANCELLED error when it is
	// done; nothing preempts them mid-computation.
	Execute(ctx context.Context, ec *Context) (any, error)
}

// Validator is implemented by skills with domain-specific precondition
// checks beyond the base identifier/subject checks. Validate must be fast
// (well under 100ms): it inspects the already-loaded Context only and
// performs no I/O.
type Validator interface {
	Validate(ec *Context) ValidationResult
}

// CanonicalConfigurer is implemented by skills whose numeric configuration
// (conversion rates, thresholds) must match compiled canonical constants.
// The registry validates persisted config against this map and refuses to
// run on any mismatch.
type CanonicalConfigurer interface {
	CanonicalConfig() map[string]float64
}

// ValidationResult is the outcome of precondition checks.
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// Merge combines two validation results; the combination is valid only if
// both are.
func (v ValidationResult) Merge(other ValidationResult) ValidationResult {
	return ValidationResult{
		Valid:  v.Valid && other.Valid,
		Errors: append(v.Errors, other.Errors...),
	}
}
