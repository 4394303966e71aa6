// Package research implements the vendor research skill at its boundary:
// it asks an external research service about haulers serving the property's
// market and passes the findings through. The interesting guarantees live in
// the surrounding envelope, not here.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tryinhard1080/wastewise/internal/skill"
)

// Findings is the skill's output: the research service's response, untouched.
type Findings struct {
	Location string          `json:"location"`
	Results  json.RawMessage `json:"results"`
}

// Skill queries the configured research endpoint. The injected client should
// be safeurl-wrapped: the endpoint is operator-configured and the request
// must not be redirectable into internal address space.
type Skill struct {
	client   *http.Client
	endpoint string
}

// New creates the skill. client must not be nil.
func New(client *http.Client, endpoint string) *Skill {
	return &Skill{client: client, endpoint: endpoint}
}

func (s *Skill) Name() string    { return "vendor-research" }
func (s *Skill) Version() string { return "1.0.3" }
func (s *Skill) Description() string {
	return "Researches waste haulers and market pricing for the property's location"
}

// Validate requires a configured endpoint and a property location.
func (s *Skill) Validate(ec *skill.Context) skill.ValidationResult {
	var errs []skill.FieldError
	if s.endpoint == "" {
		errs = append(errs, skill.FieldError{Field: "endpoint", Message: "research endpoint not configured"})
	}
	if ec.Property != nil && (ec.Property.Location == nil || *ec.Property.Location == "") {
		errs = append(errs, skill.FieldError{Field: "property.location", Message: "required for vendor research"})
	}
	return skill.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Execute performs one research call. The call is the only blocking phase,
// so the checkpoint sits immediately before it and ctx carries cancellation
// through the request itself.
func (s *Skill) Execute(ctx context.Context, ec *skill.Context) (any, error) {
	if err := skill.Checkpoint(ctx, "research"); err != nil {
		return nil, err
	}
	location := *ec.Property.Location

	ec.ReportProgress(10, "querying research service")

	reqBody, err := json.Marshal(map[string]string{
		"location":      location,
		"property_type": ec.Property.PropertyType,
	})
	if err != nil {
		return nil, skill.NewExecutionError("encode research request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, skill.NewExecutionError("build research request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, skill.NewCancelledError("research call")
		}
		return nil, skill.NewExecutionError("research request failed", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, skill.NewExecutionError("read research response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, skill.NewExecutionError(fmt.Sprintf("research service status %d", resp.StatusCode), nil)
	}
	if !json.Valid(body) {
		return nil, skill.NewExecutionError("research service returned non-JSON payload", nil)
	}

	ec.AddUsage(skill.ResourceUsage{APICalls: 1})
	return &Findings{Location: location, Results: body}, nil
}
