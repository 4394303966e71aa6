// ABOUTME: Name-keyed skill catalog plus config resolution. An explicit
// ABOUTME: instance injected into the executor — no package-level singleton.
package skill

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ConfigSource resolves persisted skill configuration. *store.Store satisfies it.
type ConfigSource interface {
	GetSkillConfig(ctx context.Context, skillName string) (map[string]float64, error)
}

// Registry is a lookup table of skills by name. It holds no execution state
// and is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register inserts s by name. Re-registering a name overwrites the previous
// entry (last write wins).
func (r *Registry) Register(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name()] = s
}

// Get returns the skill registered under name, or (nil, false).
func (r *Registry) Get(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns the registered skill names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for n := range r.skills {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetAll returns every registered skill, ordered by name.
func (r *Registry) GetAll() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ResolveConfig resolves the effective numeric configuration for a skill and
// validates every persisted value against the skill's compiled canonical
// constants. Any unknown key or mismatched value is a FORMULA_VALIDATION_ERROR:
// computing with stale or incorrect formula inputs is a deployment bug, not
// something to paper over.
//
// When nothing is persisted, the canonical constants are the configuration.
// Skills without canonical constants pass persisted config through untouched.
func (r *Registry) ResolveConfig(ctx context.Context, name string, src ConfigSource) (map[string]float64, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, NewNotFoundError("skill", name)
	}

	persisted, err := src.GetSkillConfig(ctx, name)
	if err != nil {
		return nil, NewExecutionError("load skill config", err)
	}

	cc, hasCanonical := s.(CanonicalConfigurer)
	if !hasCanonical {
		return persisted, nil
	}
	canonical := cc.CanonicalConfig()

	mismatches := make(map[string]string)
	for key, got := range persisted {
		want, known := canonical[key]
		if !known {
			mismatches[key] = fmt.Sprintf("unknown key (value %v)", got)
			continue
		}
		if got != want {
			mismatches[key] = fmt.Sprintf("have %v, canonical %v", got, want)
		}
	}
	if len(mismatches) > 0 {
		return nil, NewFormulaValidationError(name, mismatches)
	}

	resolved := make(map[string]float64, len(canonical))
	for k, v := range canonical {
		resolved[k] = v
	}
	return resolved, nil
}
