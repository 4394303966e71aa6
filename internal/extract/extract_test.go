package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func geminiResponse(text string, promptTokens, candidateTokens int64) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     promptTokens,
			"candidatesTokenCount": candidateTokens,
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestExtract_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if k := r.Header.Get("x-goog-api-key"); k != "test-key" {
			t.Errorf("api key header = %q", k)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request not JSON: %v", err)
		}
		_, _ = w.Write([]byte(geminiResponse(`{"invoice_number":"INV-9","disposal":1200}`, 850, 40)))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "test-key", "gemini-2.0-flash").WithBaseURL(srv.URL)
	out, usage, err := c.Extract(context.Background(), []byte("%PDF-1.7"), "application/pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if parsed["invoice_number"] != "INV-9" {
		t.Errorf("invoice_number = %v", parsed["invoice_number"])
	}
	if usage.InputTokens != 850 || usage.OutputTokens != 40 || usage.APICalls != 1 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestExtract_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "k", "m").WithBaseURL(srv.URL)
	_, _, err := c.Extract(context.Background(), []byte("x"), "application/pdf")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Errorf("err = %v, want status 429", err)
	}
}

func TestExtract_NoCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"usageMetadata":{"promptTokenCount":10}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "k", "m").WithBaseURL(srv.URL)
	_, usage, err := c.Extract(context.Background(), []byte("x"), "application/pdf")
	if err == nil {
		t.Fatal("want error for empty candidate list")
	}
	// Token usage is still billed even when the model returns nothing.
	if usage.InputTokens != 10 {
		t.Errorf("input tokens = %d, want 10", usage.InputTokens)
	}
}

func TestExtract_NonJSONCandidate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(geminiResponse("I could not read this document.", 5, 5)))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "k", "m").WithBaseURL(srv.URL)
	_, _, err := c.Extract(context.Background(), []byte("x"), "application/pdf")
	if err == nil || !strings.Contains(err.Error(), "non-JSON") {
		t.Errorf("err = %v, want non-JSON payload error", err)
	}
}

func TestFSFetcher(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "jan.pdf"), []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFSFetcher(root)

	data, ct, err := f.Fetch(context.Background(), "docs/jan.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Errorf("data = %q", data)
	}
	if ct != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", ct)
	}

	if _, _, err := f.Fetch(context.Background(), "docs/missing.pdf"); err == nil {
		t.Error("want error for missing file")
	}
}

func TestFSFetcher_UnknownExtension(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "blob"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, ct, err := NewFSFetcher(root).Fetch(context.Background(), "blob")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ct != "application/octet-stream" {
		t.Errorf("content type = %q, want application/octet-stream", ct)
	}
}
