// Package batchextract implements the document extraction skill: every
// un-extracted document attached to the property is fetched, run through the
// structured-extraction collaborator, and its typed output persisted.
//
// The per-document loop is the long-running part of the pipeline, so each
// iteration is both a progress report and a cancellation checkpoint. Already
// extracted documents are skipped, which makes a retried job pick up where
// the failed attempt stopped.
package batchextract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/skill"
)

// Extractor turns document bytes into typed JSON plus usage accounting.
// *extract.Client satisfies it.
type Extractor interface {
	Extract(ctx context.Context, docContent []byte, contentType string) (json.RawMessage, skill.ResourceUsage, error)
}

// ExtractionSaver persists a document's extraction output. *store.Store
// satisfies it.
type ExtractionSaver interface {
	SetDocumentExtracted(ctx context.Context, id uuid.UUID, extracted json.RawMessage) error
}

// DocumentResult is the per-document entry in the skill's output.
type DocumentResult struct {
	DocumentID uuid.UUID       `json:"document_id"`
	Name       string          `json:"name"`
	Skipped    bool            `json:"skipped,omitempty"`
	Extracted  json.RawMessage `json:"extracted,omitempty"`
}

// Output is the skill's aggregated result.
type Output struct {
	Processed int              `json:"processed"`
	Skipped   int              `json:"skipped"`
	Documents []DocumentResult `json:"documents"`
}

// Skill is the batch document extraction skill.
type Skill struct {
	extractor Extractor
	saver     ExtractionSaver
}

// New creates the skill with its collaborators.
func New(extractor Extractor, saver ExtractionSaver) *Skill {
	return &Skill{extractor: extractor, saver: saver}
}

func (s *Skill) Name() string    { return "waste-batch-extraction" }
func (s *Skill) Version() string { return "2.0.1" }
func (s *Skill) Description() string {
	return "Extracts structured charge data from uploaded waste documents"
}

// Validate requires at least one document and a wired document fetcher.
func (s *Skill) Validate(ec *skill.Context) skill.ValidationResult {
	var errs []skill.FieldError
	if len(ec.Documents) == 0 {
		errs = append(errs, skill.FieldError{Field: "documents", Message: "no documents to extract"})
	}
	if ec.Fetcher == nil {
		errs = append(errs, skill.FieldError{Field: "fetcher", Message: "document fetcher not configured"})
	}
	return skill.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Execute processes each document in turn. A fetch or provider failure aborts
// the run with a retryable error; completed documents stay persisted so the
// retry does not redo them.
func (s *Skill) Execute(ctx context.Context, ec *skill.Context) (any, error) {
	out := &Output{}
	total := len(ec.Documents)

	for i, doc := range ec.Documents {
		if err := skill.Checkpoint(ctx, fmt.Sprintf("document %d/%d", i+1, total)); err != nil {
			return nil, err
		}
		ec.ReportProgress(5+90*i/total, fmt.Sprintf("extracting %s", doc.Name))

		if doc.Extracted != nil {
			out.Skipped++
			out.Documents = append(out.Documents, DocumentResult{
				DocumentID: doc.ID, Name: doc.Name, Skipped: true,
			})
			continue
		}

		data, contentType, err := ec.Fetcher.Fetch(ctx, doc.StoragePath)
		if err != nil {
			return nil, skill.NewExecutionError(fmt.Sprintf("fetch document %s", doc.Name), err)
		}

		extracted, usage, err := s.extractor.Extract(ctx, data, contentType)
		ec.AddUsage(usage)
		if err != nil {
			return nil, skill.NewExecutionError(fmt.Sprintf("extract document %s", doc.Name), err)
		}

		if err := s.saver.SetDocumentExtracted(ctx, doc.ID, extracted); err != nil {
			return nil, skill.NewExecutionError(fmt.Sprintf("persist extraction for %s", doc.Name), err)
		}

		out.Processed++
		out.Documents = append(out.Documents, DocumentResult{
			DocumentID: doc.ID, Name: doc.Name, Extracted: extracted,
		})
	}

	return out, nil
}
