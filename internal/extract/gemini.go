// Package extract is the structured-extraction collaborator: it turns a waste
// document (invoice PDF, haul log image) into typed JSON using the Gemini
// generateContent API, reporting token usage for metering.
//
// Only the boundary is interesting here; callers depend on the narrow
// interfaces declared at their point of use, not on this package's client.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tryinhard1080/wastewise/internal/skill"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// extractionPrompt asks for the normalized invoice/haul shape the analysis
// skills consume. Kept deliberately terse; the response schema does the work.
const extractionPrompt = `Extract the waste service charges from this document.
Return invoice_number, period (YYYY-MM), and line item totals for disposal,
pickup_fees, rental, contamination, bulk, and other. Use 0 for absent items.`

// Client calls the Gemini API. Construct once at startup and share; it is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient creates a Client. Pass nil to use a default 60s-timeout client.
func NewClient(httpClient *http.Client, apiKey, model string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// WithBaseURL overrides the API endpoint. Tests point this at an httptest server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// request/response shapes, trimmed to the fields we use.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generationConfig struct {
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Extract sends the document to Gemini and returns the structured JSON
// payload plus token usage. Failures are transient from the pipeline's point
// of view: the caller's retry budget applies.
func (c *Client) Extract(ctx context.Context, docContent []byte, contentType string) (json.RawMessage, skill.ResourceUsage, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: extractionPrompt},
			{InlineData: &inlineData{
				MimeType: contentType,
				Data:     base64.StdEncoding.EncodeToString(docContent),
			}},
		}}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, skill.ResourceUsage{}, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, skill.ResourceUsage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, skill.ResourceUsage{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, skill.ResourceUsage{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, skill.ResourceUsage{}, fmt.Errorf("gemini status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, skill.ResourceUsage{}, fmt.Errorf("decode response: %w", err)
	}
	usage := skill.ResourceUsage{
		InputTokens:  gr.UsageMetadata.PromptTokenCount,
		OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
		APICalls:     1,
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, usage, fmt.Errorf("gemini returned no candidates")
	}

	text := gr.Candidates[0].Content.Parts[0].Text
	if !json.Valid([]byte(text)) {
		return nil, usage, fmt.Errorf("gemini returned non-JSON payload")
	}
	return json.RawMessage(text), usage, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
