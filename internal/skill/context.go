// ABOUTME: Per-invocation execution context: subject snapshot, dependent
// ABOUTME: collections, resolved config, progress callback. Never persisted.
package skill

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/store"
)

// ProgressFunc receives execution progress. Implementations must tolerate
// being called from the executing goroutine at any checkpoint; errors in the
// sink are the sink's problem, not the skill's.
type ProgressFunc func(pct int, step string)

// DocumentFetcher fetches a document's binary content by storage path.
// Returns the bytes and their content type.
type DocumentFetcher interface {
	Fetch(ctx context.Context, storagePath string) ([]byte, string, error)
}

// Context is the per-invocation bundle a skill executes against. It is built
// fresh for every execution and everything in it is a read snapshot: the job
// row is the only cross-worker mutable resource.
type Context struct {
	PropertyID uuid.UUID
	ActorID    uuid.UUID

	Property    *store.Property
	HaulRecords []store.HaulRecord
	Invoices    []store.Invoice
	Documents   []store.Document

	// Config is the skill's resolved numeric configuration, already
	// validated against canonical constants by the registry.
	Config map[string]float64

	// Progress reports execution progress; nil-safe via ReportProgress.
	Progress ProgressFunc

	// Fetcher resolves document content for extraction skills; nil for
	// skills that do not read documents.
	Fetcher DocumentFetcher

	mu    sync.Mutex
	usage ResourceUsage
}

// ReportProgress emits progress if a sink is attached.
func (ec *Context) ReportProgress(pct int, step string) {
	if ec.Progress != nil {
		ec.Progress(pct, step)
	}
}

// AddUsage accumulates resource usage (provider tokens, API calls) for the
// wrapper to surface in result metadata.
func (ec *Context) AddUsage(u ResourceUsage) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.usage.InputTokens += u.InputTokens
	ec.usage.OutputTokens += u.OutputTokens
	ec.usage.APICalls += u.APICalls
}

// Usage returns the accumulated resource usage.
func (ec *Context) Usage() ResourceUsage {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.usage
}

// Checkpoint is the cooperative cancellation check skills call at defined
// points (between documents, before expensive phases). It returns a
// CANCELLED error once ctx is done and nil otherwise.
func Checkpoint(ctx context.Context, step string) error {
	if ctx.Err() != nil {
		return NewCancelledError(step)
	}
	return nil
}

// baseValidate covers the checks every skill shares: required identifiers
// and a loaded subject snapshot. Concrete skills add domain checks via the
// Validator interface.
func baseValidate(ec *Context) ValidationResult {
	var errs []FieldError
	if ec.PropertyID == uuid.Nil {
		errs = append(errs, FieldError{Field: "property_id", Message: "required"})
	}
	if ec.ActorID == uuid.Nil {
		errs = append(errs, FieldError{Field: "actor_id", Message: "required"})
	}
	if ec.Property == nil {
		errs = append(errs, FieldError{Field: "property", Message: "subject data not loaded"})
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
