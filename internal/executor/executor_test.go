package executor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/executor"
	"github.com/tryinhard1080/wastewise/internal/skill"
	"github.com/tryinhard1080/wastewise/internal/skill/compactor"
	"github.com/tryinhard1080/wastewise/internal/store"
)

type fakeData struct {
	property *store.Property
	hauls    []store.HaulRecord
	config   map[string]float64

	listErr error
}

func (f *fakeData) GetProperty(_ context.Context, _ uuid.UUID) (*store.Property, error) {
	return f.property, nil
}

func (f *fakeData) ListHaulRecords(_ context.Context, _ uuid.UUID) ([]store.HaulRecord, error) {
	return f.hauls, f.listErr
}

func (f *fakeData) ListInvoices(_ context.Context, _ uuid.UUID) ([]store.Invoice, error) {
	return nil, nil
}

func (f *fakeData) ListDocuments(_ context.Context, _ uuid.UUID) ([]store.Document, error) {
	return nil, nil
}

func (f *fakeData) GetSkillConfig(_ context.Context, _ string) (map[string]float64, error) {
	return f.config, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func analysisJob() *store.Job {
	return &store.Job{
		ID:          uuid.New(),
		PropertyID:  uuid.New(),
		RequestedBy: uuid.New(),
		JobType:     store.JobTypeWasteAnalysis,
	}
}

func underweightHauls() []store.HaulRecord {
	start := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	hauls := make([]store.HaulRecord, 52)
	for i := range hauls {
		hauls[i] = store.HaulRecord{HauledAt: start.AddDate(0, 0, i*7), Tons: 5.5, HaulFee: 250}
	}
	return hauls
}

func compactorRegistry() *skill.Registry {
	reg := skill.NewRegistry()
	reg.Register(compactor.New())
	return reg
}

func TestSkillNameFor(t *testing.T) {
	t.Parallel()

	cases := map[store.JobType]string{
		store.JobTypeWasteAnalysis:      "compactor-optimization",
		store.JobTypeDocumentExtraction: "waste-batch-extraction",
		store.JobTypeVendorResearch:     "vendor-research",
		store.JobTypeReportGeneration:   "wastewise-report",
	}
	for jt, want := range cases {
		got, err := executor.SkillNameFor(jt)
		if err != nil || got != want {
			t.Errorf("SkillNameFor(%s) = %q, %v; want %q", jt, got, err, want)
		}
	}
	if _, err := executor.SkillNameFor(store.JobType("audit")); err == nil {
		t.Error("unknown job type: want error")
	}
}

func TestExecute_HappyPath(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		property: &store.Property{ID: uuid.New(), Name: "Elm Crossing", HasCompactor: true},
		hauls:    underweightHauls(),
	}
	ex := executor.New(compactorRegistry(), data, nil, discard())

	var lastPct int
	res := ex.Execute(context.Background(), analysisJob(), func(pct int, _ string) { lastPct = pct })
	if !res.Success {
		t.Fatalf("run failed: %+v", res.Error)
	}
	a, ok := res.Data.(*compactor.Analysis)
	if !ok {
		t.Fatalf("data type %T, want *compactor.Analysis", res.Data)
	}
	if !a.Recommend {
		t.Error("underweight hauls: want a recommendation")
	}
	if res.Metadata.SkillName != "compactor-optimization" {
		t.Errorf("skill name = %q", res.Metadata.SkillName)
	}
	if lastPct != 100 {
		t.Errorf("final progress = %d, want 100", lastPct)
	}
}

func TestExecute_MissingProperty(t *testing.T) {
	t.Parallel()

	ex := executor.New(compactorRegistry(), &fakeData{}, nil, discard())
	res := ex.Execute(context.Background(), analysisJob(), nil)
	if res.Success {
		t.Fatal("missing property: run must fail")
	}
	if res.Error.Code != skill.CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", res.Error.Code)
	}
	if res.Metadata.SkillName != "compactor-optimization" {
		t.Errorf("failure result lost skill identity: %+v", res.Metadata)
	}
}

func TestExecute_UnregisteredSkill(t *testing.T) {
	t.Parallel()

	ex := executor.New(skill.NewRegistry(), &fakeData{}, nil, discard())
	res := ex.Execute(context.Background(), analysisJob(), nil)
	if res.Success || res.Error.Code != skill.CodeNotFound {
		t.Errorf("result = %+v, want NOT_FOUND", res.Error)
	}
}

func TestExecute_DataSourceFailure(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		property: &store.Property{ID: uuid.New(), HasCompactor: true},
		listErr:  errors.New("connection refused"),
	}
	ex := executor.New(compactorRegistry(), data, nil, discard())
	res := ex.Execute(context.Background(), analysisJob(), nil)
	if res.Success || res.Error.Code != skill.CodeExecution {
		t.Errorf("result = %+v, want EXECUTION_ERROR", res.Error)
	}
}

func TestExecute_CanonicalConfigMismatch(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		property: &store.Property{ID: uuid.New(), HasCompactor: true},
		hauls:    underweightHauls(),
		config:   map[string]float64{compactor.KeyThreshold: 5.0},
	}
	ex := executor.New(compactorRegistry(), data, nil, discard())
	res := ex.Execute(context.Background(), analysisJob(), nil)
	if res.Success || res.Error.Code != skill.CodeFormulaValidation {
		t.Errorf("result = %+v, want FORMULA_VALIDATION_ERROR", res.Error)
	}
}
