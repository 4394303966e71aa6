package skill

import (
	"context"
	"errors"
	"testing"
)

// stubSkill is a minimal registry entry; canonical holds its compiled
// constants when non-nil.
type stubSkill struct {
	name      string
	version   string
	canonical map[string]float64
	execute   func(ctx context.Context, ec *Context) (any, error)
}

func (s *stubSkill) Name() string        { return s.name }
func (s *stubSkill) Version() string     { return s.version }
func (s *stubSkill) Description() string { return "stub" }
func (s *stubSkill) Execute(ctx context.Context, ec *Context) (any, error) {
	if s.execute != nil {
		return s.execute(ctx, ec)
	}
	return map[string]any{"ok": true}, nil
}

// canonicalStub adds CanonicalConfig to stubSkill.
type canonicalStub struct{ stubSkill }

func (s *canonicalStub) CanonicalConfig() map[string]float64 { return s.canonical }

// stubConfigSource returns a fixed persisted config.
type stubConfigSource struct {
	cfg map[string]float64
	err error
}

func (s *stubConfigSource) GetSkillConfig(context.Context, string) (map[string]float64, error) {
	return s.cfg, s.err
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	r.Register(&stubSkill{name: "b-skill", version: "1.0.0"})
	r.Register(&stubSkill{name: "a-skill", version: "1.0.0"})

	if !r.Has("a-skill") || !r.Has("b-skill") {
		t.Fatal("registered skills not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get returned a skill for an unregistered name")
	}

	names := r.List()
	if len(names) != 2 || names[0] != "a-skill" || names[1] != "b-skill" {
		t.Errorf("List() = %v, want sorted [a-skill b-skill]", names)
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	r.Register(&stubSkill{name: "dup", version: "1.0.0"})
	r.Register(&stubSkill{name: "dup", version: "2.0.0"})

	s, ok := r.Get("dup")
	if !ok {
		t.Fatal("skill not found")
	}
	if s.Version() != "2.0.0" {
		t.Errorf("version = %s, want last-registered 2.0.0", s.Version())
	}
	if len(r.List()) != 1 {
		t.Errorf("re-registration created a second entry")
	}
}

func TestResolveConfig_MissingSkill(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.ResolveConfig(context.Background(), "ghost", &stubConfigSource{})
	if CodeOf(err) != CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", CodeOf(err))
	}
}

func TestResolveConfig_CanonicalWhenNothingPersisted(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	canonical := map[string]float64{"threshold": 6.0, "target": 8.0}
	r.Register(&canonicalStub{stubSkill{name: "s", version: "1", canonical: canonical}})

	cfg, err := r.ResolveConfig(context.Background(), "s", &stubConfigSource{cfg: nil})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg["threshold"] != 6.0 || cfg["target"] != 8.0 {
		t.Errorf("cfg = %v, want canonical constants", cfg)
	}

	// Returned map is a copy: mutating it must not touch the canonical set.
	cfg["threshold"] = 99
	again, _ := r.ResolveConfig(context.Background(), "s", &stubConfigSource{cfg: nil})
	if again["threshold"] != 6.0 {
		t.Error("ResolveConfig returned a shared map")
	}
}

func TestResolveConfig_MatchingPersistedPasses(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	canonical := map[string]float64{"threshold": 6.0, "target": 8.0}
	r.Register(&canonicalStub{stubSkill{name: "s", version: "1", canonical: canonical}})

	cfg, err := r.ResolveConfig(context.Background(), "s",
		&stubConfigSource{cfg: map[string]float64{"threshold": 6.0}})
	if err != nil {
		t.Fatalf("resolve with matching subset: %v", err)
	}
	if cfg["target"] != 8.0 {
		t.Errorf("resolved config missing canonical key: %v", cfg)
	}
}

func TestResolveConfig_MismatchIsFormulaValidationError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	canonical := map[string]float64{"threshold": 6.0}
	r.Register(&canonicalStub{stubSkill{name: "s", version: "1", canonical: canonical}})

	cases := map[string]map[string]float64{
		"value mismatch": {"threshold": 6.5},
		"unknown key":    {"threshold": 6.0, "bogus": 1.0},
	}
	for name, persisted := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.ResolveConfig(context.Background(), "s", &stubConfigSource{cfg: persisted})
			if CodeOf(err) != CodeFormulaValidation {
				t.Errorf("code = %s, want FORMULA_VALIDATION_ERROR", CodeOf(err))
			}
			var se *Error
			if !errors.As(err, &se) || se.Details["mismatches"] == nil {
				t.Errorf("mismatch detail missing: %v", err)
			}
		})
	}
}

func TestResolveConfig_SourceErrorIsExecutionError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(&stubSkill{name: "s", version: "1"})

	_, err := r.ResolveConfig(context.Background(), "s",
		&stubConfigSource{err: errors.New("connection refused")})
	if CodeOf(err) != CodeExecution {
		t.Errorf("code = %s, want EXECUTION_ERROR", CodeOf(err))
	}
}

func TestResolveConfig_PassthroughWithoutCanonical(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(&stubSkill{name: "s", version: "1"})

	persisted := map[string]float64{"anything": 42}
	cfg, err := r.ResolveConfig(context.Background(), "s", &stubConfigSource{cfg: persisted})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg["anything"] != 42 {
		t.Errorf("persisted config not passed through: %v", cfg)
	}
}
