// ABOUTME: The uniform execution result every skill run produces, regardless
// ABOUTME: of algorithm: success/data/error plus timing and usage metadata.
package skill

import "time"

// ResourceUsage accounts for external provider consumption during a run.
type ResourceUsage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
	APICalls     int   `json:"api_calls,omitempty"`
}

func (u ResourceUsage) zero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.APICalls == 0
}

// ErrorDetail is the serializable failure shape inside a Result.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Metadata describes one execution envelope.
type Metadata struct {
	SkillName     string         `json:"skill_name"`
	SkillVersion  string         `json:"skill_version"`
	DurationMS    int64          `json:"duration_ms"`
	ExecutedAt    time.Time      `json:"executed_at"`
	ResourceUsage *ResourceUsage `json:"resource_usage,omitempty"`
}

// Result is what the executor consumes from every skill run. Exactly one of
// Data (on success) and Error (on failure) is set.
type Result struct {
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
	Metadata Metadata     `json:"metadata"`
}
