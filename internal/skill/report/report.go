// Package report implements the report generation skill: it folds a
// property's invoices and haul history into a spend summary, a prioritized
// recommendation list, and service-level guidance.
//
// Report jobs run at the lowest queue urgency; the numbers here are derived
// from the same haul data the analysis skills use, so a report never blocks
// on another job having run first.
package report

import (
	"context"
	"math"
	"sort"

	"github.com/tryinhard1080/wastewise/internal/skill"
	"github.com/tryinhard1080/wastewise/internal/skill/compactor"
	"github.com/tryinhard1080/wastewise/internal/store"
)

// Recommendation is one prioritized savings opportunity.
type Recommendation struct {
	Title          string   `json:"title"`
	Detail         string   `json:"detail"`
	MonthlySavings float64  `json:"monthly_savings"`
	AnnualSavings  float64  `json:"annual_savings"`
	PaybackMonths  *float64 `json:"payback_months,omitempty"`
	Priority       int      `json:"priority"`
}

// SpendSummary aggregates the invoice history.
type SpendSummary struct {
	Months            int     `json:"months"`
	TotalSpend        float64 `json:"total_spend"`
	AvgMonthlySpend   float64 `json:"avg_monthly_spend"`
	AvgMonthlyBulk    float64 `json:"avg_monthly_bulk"`
	ContaminationPct  float64 `json:"contamination_pct"`
	CostPerDoorMonthly float64 `json:"cost_per_door_monthly"`
}

// Report is the skill's output.
type Report struct {
	Summary         SpendSummary     `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	ServiceGuidance string           `json:"service_guidance"`
}

// Skill generates property waste reports.
type Skill struct{}

// New returns the skill.
func New() *Skill { return &Skill{} }

func (s *Skill) Name() string    { return "wastewise-report" }
func (s *Skill) Version() string { return "1.1.0" }
func (s *Skill) Description() string {
	return "Builds the property's spend summary and prioritized savings recommendations"
}

// Validate requires invoice history to report on.
func (s *Skill) Validate(ec *skill.Context) skill.ValidationResult {
	var errs []skill.FieldError
	if len(ec.Invoices) == 0 {
		errs = append(errs, skill.FieldError{Field: "invoices", Message: "at least one invoice required"})
	}
	return skill.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Execute assembles the report.
func (s *Skill) Execute(ctx context.Context, ec *skill.Context) (any, error) {
	if err := skill.Checkpoint(ctx, "summarize"); err != nil {
		return nil, err
	}
	ec.ReportProgress(20, "summarizing spend")
	summary := Summarize(ec.Invoices, ec.Property.Units)

	ec.ReportProgress(60, "building recommendations")
	var recs []Recommendation
	if r := contaminationPlan(summary); r != nil {
		recs = append(recs, *r)
	}
	if r := bulkStrategy(summary.AvgMonthlyBulk); r != nil {
		recs = append(recs, *r)
	}
	if ec.Property.HasCompactor && len(ec.HaulRecords) >= 3 {
		cfg := compactor.New().CanonicalConfig()
		if a := compactor.Analyze(ec.HaulRecords, cfg); a.Recommend {
			payback := a.PaybackMonths
			recs = append(recs, Recommendation{
				Title:          "Add compactor monitors",
				Detail:         "Average haul weight is below the optimization threshold; monitors stretch the pickup interval.",
				MonthlySavings: round2(a.NetFirstYearSavings / 12),
				AnnualSavings:  a.NetFirstYearSavings,
				PaybackMonths:  &payback,
			})
		}
	}

	return &Report{
		Summary:         summary,
		Recommendations: Prioritize(recs),
		ServiceGuidance: serviceGuidance(ec.HaulRecords, ec.Invoices),
	}, nil
}

// Summarize aggregates invoices into the spend view.
func Summarize(invoices []store.Invoice, units int) SpendSummary {
	var total, bulk, contamination float64
	for _, inv := range invoices {
		rowTotal := inv.Disposal + inv.PickupFees + inv.Rental + inv.Contamination + inv.Bulk + inv.Other
		total += rowTotal
		bulk += inv.Bulk
		contamination += inv.Contamination
	}
	months := len(invoices)
	s := SpendSummary{
		Months:          months,
		TotalSpend:      round2(total),
		AvgMonthlySpend: round2(total / float64(months)),
		AvgMonthlyBulk:  round2(bulk / float64(months)),
	}
	if total > 0 {
		s.ContaminationPct = round2(contamination / total * 100)
	}
	if units > 0 {
		s.CostPerDoorMonthly = round2(total / float64(months) / float64(units))
	}
	return s
}

// contaminationPlan recommends intervention when contamination charges exceed
// 3% of spend; heavy contamination (>5%) justifies the full program at an
// expected 50% charge reduction, lighter cases get signage refresh at 25%.
func contaminationPlan(s SpendSummary) *Recommendation {
	if s.ContaminationPct <= 3 {
		return nil
	}
	monthlyCharges := s.AvgMonthlySpend * s.ContaminationPct / 100
	reduction := 0.25
	detail := "Light intervention: signage refresh and resident reminders."
	if s.ContaminationPct > 5 {
		reduction = 0.5
		detail = "Full contamination program: signage, resident education, and monthly monitoring."
	}
	monthly := round2(monthlyCharges * reduction)
	return &Recommendation{
		Title:          "Contamination reduction",
		Detail:         detail,
		MonthlySavings: monthly,
		AnnualSavings:  round2(monthly * 12),
	}
}

// bulkStrategy recommends a flat-rate bulk subscription when on-demand spend
// consistently exceeds the subscription price.
func bulkStrategy(avgMonthlyBulk float64) *Recommendation {
	const subscriptionRate = 400
	if avgMonthlyBulk <= 500 {
		return nil
	}
	monthly := round2(avgMonthlyBulk - subscriptionRate)
	return &Recommendation{
		Title:          "Switch to bulk subscription",
		Detail:         "On-demand bulk spend exceeds the flat subscription rate.",
		MonthlySavings: monthly,
		AnnualSavings:  round2(monthly * 12),
	}
}

// serviceGuidance maps average haul weight to a service-level call:
// underweight hauls mean the schedule can stretch, heavy hauls with overage
// charges mean the compactor is running at capacity.
func serviceGuidance(hauls []store.HaulRecord, invoices []store.Invoice) string {
	if len(hauls) == 0 {
		return "Insufficient haul history for service guidance."
	}
	var tons float64
	for _, h := range hauls {
		tons += h.Tons
	}
	avg := tons / float64(len(hauls))

	overages := false
	for _, inv := range invoices {
		if inv.Other > 0 {
			overages = true
			break
		}
	}

	switch {
	case avg >= 8 && overages:
		return "Add a service day: compactor is near capacity."
	case avg < 6 && !overages:
		return "Reduce pickup frequency: compactor is underutilized."
	default:
		return "Maintain current service."
	}
}

// Prioritize ranks recommendations by annual savings (descending), breaking
// ties on payback (ascending, absent last), and assigns 1-based priorities.
func Prioritize(recs []Recommendation) []Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].AnnualSavings != recs[j].AnnualSavings {
			return recs[i].AnnualSavings > recs[j].AnnualSavings
		}
		pi, pj := math.Inf(1), math.Inf(1)
		if recs[i].PaybackMonths != nil {
			pi = *recs[i].PaybackMonths
		}
		if recs[j].PaybackMonths != nil {
			pj = *recs[j].PaybackMonths
		}
		return pi < pj
	})
	for i := range recs {
		recs[i].Priority = i + 1
	}
	return recs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
