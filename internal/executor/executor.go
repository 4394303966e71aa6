// ABOUTME: Bridges the job queue to the skill framework: maps a claimed job
// ABOUTME: to its skill, loads the property snapshot, runs the envelope.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/metrics"
	"github.com/tryinhard1080/wastewise/internal/skill"
	"github.com/tryinhard1080/wastewise/internal/store"
)

// DataSource is the read surface the executor needs to assemble an execution
// context. *store.Store satisfies it; tests use an in-memory fake.
type DataSource interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*store.Property, error)
	ListHaulRecords(ctx context.Context, propertyID uuid.UUID) ([]store.HaulRecord, error)
	ListInvoices(ctx context.Context, propertyID uuid.UUID) ([]store.Invoice, error)
	ListDocuments(ctx context.Context, propertyID uuid.UUID) ([]store.Document, error)
	GetSkillConfig(ctx context.Context, skillName string) (map[string]float64, error)
}

// SkillNameFor maps every job type in the closed set to its skill. The
// mapping is total: adding a job type without a skill is caught at enqueue
// validation, not here.
func SkillNameFor(t store.JobType) (string, error) {
	switch t {
	case store.JobTypeWasteAnalysis:
		return "compactor-optimization", nil
	case store.JobTypeDocumentExtraction:
		return "waste-batch-extraction", nil
	case store.JobTypeVendorResearch:
		return "vendor-research", nil
	case store.JobTypeReportGeneration:
		return "wastewise-report", nil
	default:
		return "", fmt.Errorf("no skill for job type %q", t)
	}
}

// Executor runs claimed jobs through their skills. It holds no per-job state
// and is shared by every worker goroutine.
type Executor struct {
	registry *skill.Registry
	data     DataSource
	fetcher  skill.DocumentFetcher
	logger   *slog.Logger
}

// New returns an executor. fetcher may be nil when no extraction skill is
// registered.
func New(registry *skill.Registry, data DataSource, fetcher skill.DocumentFetcher, logger *slog.Logger) *Executor {
	return &Executor{registry: registry, data: data, fetcher: fetcher, logger: logger}
}

// Execute resolves the job's skill, builds its execution context, and runs it
// inside the shared envelope. Like the envelope itself it never returns an
// error: context-assembly failures are folded into a failed Result so the
// worker has a single persistence path.
func (e *Executor) Execute(ctx context.Context, job *store.Job, progress skill.ProgressFunc) *skill.Result {
	name, err := SkillNameFor(job.JobType)
	if err != nil {
		return failed(skill.NewNotFoundError("skill for job type", string(job.JobType)))
	}
	sk, ok := e.registry.Get(name)
	if !ok {
		return failed(skill.NewNotFoundError("skill", name))
	}

	ec, err := e.buildContext(ctx, name, job, progress)
	if err != nil {
		e.logger.Warn("context build failed",
			"job_id", job.ID, "job_type", job.JobType, "error", err)
		return failedFor(sk, err)
	}

	start := time.Now()
	res := skill.Run(ctx, sk, ec)
	metrics.JobDuration.WithLabelValues(string(job.JobType)).Observe(time.Since(start).Seconds())
	if u := res.Metadata.ResourceUsage; u != nil {
		metrics.ExtractionTokens.WithLabelValues("input").Add(float64(u.InputTokens))
		metrics.ExtractionTokens.WithLabelValues("output").Add(float64(u.OutputTokens))
	}
	return res
}

// buildContext loads the property snapshot and resolved config. A missing
// property is NOT_FOUND, which the worker treats as non-retryable.
func (e *Executor) buildContext(ctx context.Context, skillName string, job *store.Job, progress skill.ProgressFunc) (*skill.Context, error) {
	prop, err := e.data.GetProperty(ctx, job.PropertyID)
	if err != nil {
		return nil, skill.NewExecutionError("load property", err)
	}
	if prop == nil {
		return nil, skill.NewNotFoundError("property", job.PropertyID.String())
	}

	hauls, err := e.data.ListHaulRecords(ctx, job.PropertyID)
	if err != nil {
		return nil, skill.NewExecutionError("load haul records", err)
	}
	invoices, err := e.data.ListInvoices(ctx, job.PropertyID)
	if err != nil {
		return nil, skill.NewExecutionError("load invoices", err)
	}
	docs, err := e.data.ListDocuments(ctx, job.PropertyID)
	if err != nil {
		return nil, skill.NewExecutionError("load documents", err)
	}

	cfg, err := e.registry.ResolveConfig(ctx, skillName, e.data)
	if err != nil {
		return nil, err
	}

	return &skill.Context{
		PropertyID:  job.PropertyID,
		ActorID:     job.RequestedBy,
		Property:    prop,
		HaulRecords: hauls,
		Invoices:    invoices,
		Documents:   docs,
		Config:      cfg,
		Progress:    progress,
		Fetcher:     e.fetcher,
	}, nil
}

// failed wraps an error into a Result with no skill metadata, for when the
// skill itself could not be resolved.
func failed(err error) *skill.Result {
	return &skill.Result{Error: skill.ErrorDetailOf(err)}
}

// failedFor wraps an error into a Result carrying the skill's identity.
func failedFor(s skill.Skill, err error) *skill.Result {
	return &skill.Result{
		Error: skill.ErrorDetailOf(err),
		Metadata: skill.Metadata{
			SkillName:    s.Name(),
			SkillVersion: s.Version(),
			ExecutedAt:   time.Now().UTC(),
		},
	}
}
