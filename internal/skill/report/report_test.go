package report

import (
	"context"
	"testing"
	"time"

	"github.com/tryinhard1080/wastewise/internal/skill"
	"github.com/tryinhard1080/wastewise/internal/store"
)

func invoice(disposal, contamination, bulk, other float64) store.Invoice {
	return store.Invoice{
		Disposal:      disposal,
		PickupFees:    200,
		Rental:        100,
		Contamination: contamination,
		Bulk:          bulk,
		Other:         other,
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	invoices := []store.Invoice{
		invoice(1000, 60, 600, 0),  // 1960
		invoice(1000, 40, 640, 0),  // 1980
	}
	s := Summarize(invoices, 100)

	if s.Months != 2 {
		t.Errorf("months = %d, want 2", s.Months)
	}
	if s.TotalSpend != 3940 {
		t.Errorf("total = %v, want 3940", s.TotalSpend)
	}
	if s.AvgMonthlySpend != 1970 {
		t.Errorf("avg monthly = %v, want 1970", s.AvgMonthlySpend)
	}
	if s.AvgMonthlyBulk != 620 {
		t.Errorf("avg bulk = %v, want 620", s.AvgMonthlyBulk)
	}
	if s.ContaminationPct != 2.54 { // 100/3940
		t.Errorf("contamination pct = %v, want 2.54", s.ContaminationPct)
	}
	if s.CostPerDoorMonthly != 19.7 {
		t.Errorf("cost per door = %v, want 19.7", s.CostPerDoorMonthly)
	}
}

func TestSummarize_ZeroUnitsAndSpend(t *testing.T) {
	t.Parallel()

	s := Summarize([]store.Invoice{{}}, 0)
	if s.ContaminationPct != 0 || s.CostPerDoorMonthly != 0 {
		t.Errorf("zero-spend summary computed ratios: %+v", s)
	}
}

func TestContaminationPlan_Bands(t *testing.T) {
	t.Parallel()

	if r := contaminationPlan(SpendSummary{AvgMonthlySpend: 1000, ContaminationPct: 3}); r != nil {
		t.Errorf("3%% contamination produced a plan: %+v", r)
	}

	light := contaminationPlan(SpendSummary{AvgMonthlySpend: 1000, ContaminationPct: 4})
	if light == nil {
		t.Fatal("4% contamination: want light plan")
	}
	if light.MonthlySavings != 10 || light.AnnualSavings != 120 {
		t.Errorf("light plan savings = %v/%v, want 10/120", light.MonthlySavings, light.AnnualSavings)
	}

	full := contaminationPlan(SpendSummary{AvgMonthlySpend: 1000, ContaminationPct: 6})
	if full == nil {
		t.Fatal("6% contamination: want full program")
	}
	if full.MonthlySavings != 30 || full.AnnualSavings != 360 {
		t.Errorf("full program savings = %v/%v, want 30/360", full.MonthlySavings, full.AnnualSavings)
	}
	if full.Detail == light.Detail {
		t.Error("light and full plans share the same detail text")
	}
}

func TestBulkStrategy(t *testing.T) {
	t.Parallel()

	if r := bulkStrategy(500); r != nil {
		t.Errorf("bulk spend at 500 produced a recommendation: %+v", r)
	}
	r := bulkStrategy(650)
	if r == nil {
		t.Fatal("bulk spend 650: want subscription recommendation")
	}
	if r.MonthlySavings != 250 || r.AnnualSavings != 3000 {
		t.Errorf("savings = %v/%v, want 250/3000", r.MonthlySavings, r.AnnualSavings)
	}
}

func TestServiceGuidance(t *testing.T) {
	t.Parallel()

	haulsAt := func(tons float64) []store.HaulRecord {
		return []store.HaulRecord{{Tons: tons}, {Tons: tons}}
	}
	overage := []store.Invoice{{Other: 50}}
	clean := []store.Invoice{{}}

	cases := []struct {
		name     string
		hauls    []store.HaulRecord
		invoices []store.Invoice
		want     string
	}{
		{"no history", nil, clean, "Insufficient haul history for service guidance."},
		{"heavy with overages", haulsAt(8.5), overage, "Add a service day: compactor is near capacity."},
		{"light no overages", haulsAt(5), clean, "Reduce pickup frequency: compactor is underutilized."},
		{"heavy no overages", haulsAt(8.5), clean, "Maintain current service."},
		{"light with overages", haulsAt(5), overage, "Maintain current service."},
		{"mid range", haulsAt(7), clean, "Maintain current service."},
	}
	for _, tc := range cases {
		if got := serviceGuidance(tc.hauls, tc.invoices); got != tc.want {
			t.Errorf("%s: guidance = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestPrioritize(t *testing.T) {
	t.Parallel()

	six := 6.0
	recs := Prioritize([]Recommendation{
		{Title: "no payback", AnnualSavings: 1000},
		{Title: "biggest", AnnualSavings: 2000},
		{Title: "fast payback", AnnualSavings: 1000, PaybackMonths: &six},
	})

	wantOrder := []string{"biggest", "fast payback", "no payback"}
	for i, title := range wantOrder {
		if recs[i].Title != title {
			t.Errorf("rank %d = %q, want %q", i+1, recs[i].Title, title)
		}
		if recs[i].Priority != i+1 {
			t.Errorf("%q priority = %d, want %d", recs[i].Title, recs[i].Priority, i+1)
		}
	}
}

func TestExecute_FullReport(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	hauls := make([]store.HaulRecord, 52)
	for i := range hauls {
		hauls[i] = store.HaulRecord{HauledAt: start.AddDate(0, 0, i*7), Tons: 5.8, HaulFee: 200}
	}
	ec := &skill.Context{
		Property: &store.Property{Units: 200, HasCompactor: true},
		Invoices: []store.Invoice{
			invoice(1000, 150, 700, 0),
			invoice(1000, 130, 700, 0),
		},
		HaulRecords: hauls,
	}

	out, err := New().Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rep, ok := out.(*Report)
	if !ok {
		t.Fatalf("result type %T, want *Report", out)
	}

	// Contamination >5%, bulk >500, and an underweight compactor: all three
	// recommendation sources fire.
	if len(rep.Recommendations) != 3 {
		t.Fatalf("got %d recommendations, want 3: %+v", len(rep.Recommendations), rep.Recommendations)
	}
	for i, r := range rep.Recommendations {
		if r.Priority != i+1 {
			t.Errorf("recommendation %d has priority %d", i, r.Priority)
		}
		if i > 0 && r.AnnualSavings > rep.Recommendations[i-1].AnnualSavings {
			t.Errorf("recommendations not sorted by annual savings: %v after %v",
				r.AnnualSavings, rep.Recommendations[i-1].AnnualSavings)
		}
	}
	if rep.Summary.Months != 2 {
		t.Errorf("summary months = %d, want 2", rep.Summary.Months)
	}
	if rep.ServiceGuidance != "Reduce pickup frequency: compactor is underutilized." {
		t.Errorf("guidance = %q", rep.ServiceGuidance)
	}
}

func TestValidate_RequiresInvoices(t *testing.T) {
	t.Parallel()

	vr := New().Validate(&skill.Context{Property: &store.Property{}})
	if vr.Valid {
		t.Fatal("empty invoice history passed validation")
	}
	if vr.Errors[0].Field != "invoices" {
		t.Errorf("field = %q, want invoices", vr.Errors[0].Field)
	}
}
