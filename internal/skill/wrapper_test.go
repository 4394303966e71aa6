package skill

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/store"
)

// validatingStub pairs a Validate result with an execution counter so tests
// can prove the body never ran.
type validatingStub struct {
	stubSkill
	valid    ValidationResult
	executed int
}

func (s *validatingStub) Validate(*Context) ValidationResult { return s.valid }

func validContext() *Context {
	return &Context{
		PropertyID: uuid.New(),
		ActorID:    uuid.New(),
		Property:   &store.Property{ID: uuid.New(), Name: "p", Units: 100},
	}
}

func TestRun_ValidationShortCircuits(t *testing.T) {
	t.Parallel()

	s := &validatingStub{
		valid: ValidationResult{Valid: false, Errors: []FieldError{{Field: "hauls", Message: "too few"}}},
	}
	s.execute = func(context.Context, *Context) (any, error) {
		s.executed++
		return nil, nil
	}

	var progressCalls int
	ec := validContext()
	ec.Progress = func(int, string) { progressCalls++ }

	res := Run(context.Background(), s, ec)

	if res.Success {
		t.Fatal("invalid input produced a successful result")
	}
	if s.executed != 0 {
		t.Errorf("algorithm body ran %d times despite failed validation", s.executed)
	}
	if res.Error == nil || res.Error.Code != CodeValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", res.Error)
	}
	if progressCalls != 0 {
		t.Errorf("progress reported %d times before validation passed", progressCalls)
	}
}

func TestRun_BaseValidationMergedWithSkillChecks(t *testing.T) {
	t.Parallel()

	s := &validatingStub{
		valid: ValidationResult{Valid: false, Errors: []FieldError{{Field: "hauls", Message: "too few"}}},
	}
	// Missing property triggers base checks too; both sets must be attached.
	ec := &Context{PropertyID: uuid.New(), ActorID: uuid.New()}

	res := Run(context.Background(), s, ec)

	fieldErrs, ok := res.Error.Details["errors"].([]FieldError)
	if !ok {
		t.Fatalf("details[errors] = %T, want []FieldError", res.Error.Details["errors"])
	}
	if len(fieldErrs) != 2 {
		t.Errorf("field errors = %d, want base + skill check", len(fieldErrs))
	}
}

func TestRun_SuccessReportsProgressBounds(t *testing.T) {
	t.Parallel()

	s := &stubSkill{name: "ok", version: "1"}
	var pcts []int
	ec := validContext()
	ec.Progress = func(pct int, _ string) { pcts = append(pcts, pct) }

	res := Run(context.Background(), s, ec)

	if !res.Success || res.Data == nil || res.Error != nil {
		t.Fatalf("result = %+v, want success with data", res)
	}
	if len(pcts) < 2 || pcts[0] != 0 || pcts[len(pcts)-1] != 100 {
		t.Errorf("progress sequence = %v, want 0 first and 100 last", pcts)
	}
	if res.Metadata.SkillName != "ok" || res.Metadata.SkillVersion != "1" {
		t.Errorf("metadata identity = %+v", res.Metadata)
	}
	if res.Metadata.ExecutedAt.IsZero() {
		t.Error("metadata missing execution timestamp")
	}
}

func TestRun_PanicBecomesExecutionError(t *testing.T) {
	t.Parallel()

	s := &stubSkill{name: "boom", version: "1"}
	s.execute = func(context.Context, *Context) (any, error) {
		panic("index out of range")
	}

	res := Run(context.Background(), s, validContext())

	if res.Success {
		t.Fatal("panicking skill reported success")
	}
	if res.Error.Code != CodeExecution {
		t.Errorf("code = %s, want EXECUTION_ERROR", res.Error.Code)
	}
}

func TestRun_TypedErrorKeepsCode(t *testing.T) {
	t.Parallel()

	s := &stubSkill{name: "nf", version: "1"}
	s.execute = func(context.Context, *Context) (any, error) {
		return nil, NewNotFoundError("document", "d1")
	}

	res := Run(context.Background(), s, validContext())
	if res.Error.Code != CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", res.Error.Code)
	}
}

func TestRun_ContextCancellationNormalized(t *testing.T) {
	t.Parallel()

	s := &stubSkill{name: "cancelled", version: "1"}
	s.execute = func(ctx context.Context, _ *Context) (any, error) {
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, s, validContext())
	if res.Success {
		t.Fatal("cancelled execution reported success")
	}
	if res.Error.Code != CodeCancelled {
		t.Errorf("code = %s, want CANCELLED", res.Error.Code)
	}
}

func TestRun_CancellationBeforeCheckpointNeverSucceeds(t *testing.T) {
	t.Parallel()

	s := &stubSkill{name: "checkpointed", version: "1"}
	s.execute = func(ctx context.Context, _ *Context) (any, error) {
		if err := Checkpoint(ctx, "expensive phase"); err != nil {
			return nil, err
		}
		return map[string]any{"should": "not happen"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, s, validContext())
	if res.Success {
		t.Fatal("execution succeeded past a cancelled checkpoint")
	}
	if res.Error.Code != CodeCancelled {
		t.Errorf("code = %s, want CANCELLED", res.Error.Code)
	}
}

func TestRun_UsageSurfacesInMetadata(t *testing.T) {
	t.Parallel()

	s := &stubSkill{name: "tokens", version: "1"}
	s.execute = func(_ context.Context, ec *Context) (any, error) {
		ec.AddUsage(ResourceUsage{InputTokens: 100, OutputTokens: 20, APICalls: 1})
		ec.AddUsage(ResourceUsage{APICalls: 1})
		return "done", nil
	}

	res := Run(context.Background(), s, validContext())
	u := res.Metadata.ResourceUsage
	if u == nil || u.InputTokens != 100 || u.OutputTokens != 20 || u.APICalls != 2 {
		t.Errorf("usage = %+v, want accumulated totals", u)
	}

	// No usage reported: metadata omits the block entirely.
	res = Run(context.Background(), &stubSkill{name: "quiet", version: "1"}, validContext())
	if res.Metadata.ResourceUsage != nil {
		t.Errorf("usage = %+v, want nil when nothing accumulated", res.Metadata.ResourceUsage)
	}
}

func TestCheckpoint(t *testing.T) {
	t.Parallel()

	if err := Checkpoint(context.Background(), "step"); err != nil {
		t.Errorf("checkpoint on live context: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Checkpoint(ctx, "step")
	var se *Error
	if !errors.As(err, &se) || se.Code != CodeCancelled {
		t.Errorf("checkpoint on cancelled context = %v, want CANCELLED", err)
	}
}
