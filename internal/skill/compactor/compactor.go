// Package compactor implements the compactor right-sizing skill: given a
// property's haul history, decide whether adding fullness monitors and
// stretching the pickup interval pays for itself.
//
// The formula constants are compiled in as canonical values; persisted config
// must match them exactly or the registry refuses to run the skill. This is
// deliberate — a silently stale threshold would produce confident, wrong
// savings numbers.
package compactor

import (
	"context"
	"math"

	"github.com/tryinhard1080/wastewise/internal/skill"
	"github.com/tryinhard1080/wastewise/internal/store"
)

// Canonical config keys.
const (
	// KeyThreshold is the average tons/haul below which optimization is
	// recommended. The comparison is STRICT less-than: an average of
	// exactly the threshold means "no recommendation".
	KeyThreshold = "threshold_tons_per_haul"
	// KeyTarget is the tons/haul a monitored compactor achieves.
	KeyTarget = "target_tons_per_haul"
	// KeyInstallCost is the one-time monitor install cost.
	KeyInstallCost = "monitor_install_cost"
	// KeyAnnualCost is the recurring annual monitoring cost.
	KeyAnnualCost = "monitor_annual_cost"
	// KeyHaulFeeMultiplier grosses the base haul fee up to all-in cost
	// (fuel surcharges, environmental fees).
	KeyHaulFeeMultiplier = "haul_fee_multiplier"
)

const (
	canonicalThreshold     = 6.0
	canonicalTarget        = 8.0
	canonicalInstallCost   = 1800.0
	canonicalAnnualCost    = 948.0
	canonicalFeeMultiplier = 1.39
)

// minHaulRecords is the smallest history that gives a usable average.
const minHaulRecords = 3

// Analysis is the skill's output.
type Analysis struct {
	AverageTonsPerHaul  float64 `json:"average_tons_per_haul"`
	CurrentHaulsPerYear int     `json:"current_hauls_per_year"`
	AvgCostPerHaul      float64 `json:"avg_cost_per_haul"`

	Recommend bool `json:"recommend"`

	AchievableHaulsPerYear int     `json:"achievable_hauls_per_year,omitempty"`
	EliminatedHauls        int     `json:"eliminated_hauls,omitempty"`
	GrossAnnualSavings     float64 `json:"gross_annual_savings"`
	NetFirstYearSavings    float64 `json:"net_first_year_savings"`
	ROIPct                 float64 `json:"roi_pct,omitempty"`
	PaybackMonths          float64 `json:"payback_months,omitempty"`
}

// Skill implements the compactor optimization analysis.
type Skill struct{}

// New returns the skill.
func New() *Skill { return &Skill{} }

func (s *Skill) Name() string    { return "compactor-optimization" }
func (s *Skill) Version() string { return "1.2.0" }
func (s *Skill) Description() string {
	return "Recommends compactor monitors when average haul weight is below the optimization threshold"
}

// CanonicalConfig returns the compiled formula constants.
func (s *Skill) CanonicalConfig() map[string]float64 {
	return map[string]float64{
		KeyThreshold:         canonicalThreshold,
		KeyTarget:            canonicalTarget,
		KeyInstallCost:       canonicalInstallCost,
		KeyAnnualCost:        canonicalAnnualCost,
		KeyHaulFeeMultiplier: canonicalFeeMultiplier,
	}
}

// Validate adds the domain preconditions on top of the base checks.
func (s *Skill) Validate(ec *skill.Context) skill.ValidationResult {
	var errs []skill.FieldError
	if ec.Property != nil && !ec.Property.HasCompactor {
		errs = append(errs, skill.FieldError{Field: "property", Message: "property has no compactor"})
	}
	if len(ec.HaulRecords) < minHaulRecords {
		errs = append(errs, skill.FieldError{Field: "haul_records", Message: "at least 3 haul records required"})
	}
	for _, key := range []string{KeyThreshold, KeyTarget, KeyInstallCost, KeyAnnualCost, KeyHaulFeeMultiplier} {
		if _, ok := ec.Config[key]; !ok {
			errs = append(errs, skill.FieldError{Field: "config." + key, Message: "missing"})
		}
	}
	return skill.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Execute runs the analysis. The haul history is a read snapshot; the only
// cancellation checkpoint is at the top since the computation itself is
// sub-millisecond.
func (s *Skill) Execute(ctx context.Context, ec *skill.Context) (any, error) {
	if err := skill.Checkpoint(ctx, "analyze"); err != nil {
		return nil, err
	}
	return Analyze(ec.HaulRecords, ec.Config), nil
}

// Analyze is the pure algorithm, exported for direct testing.
//
// If the average load per haul is below the threshold (strict <), a monitored
// compactor could be pulled less often: the achievable frequency holds annual
// tonnage constant at the target load. Savings are eliminated hauls times the
// observed all-in cost per haul, netted against monitor costs. At or above
// the threshold the answer is "no recommendation" with zero savings and no
// further computation.
func Analyze(hauls []store.HaulRecord, cfg map[string]float64) *Analysis {
	var totalTons, totalFees float64
	for _, h := range hauls {
		totalTons += h.Tons
		totalFees += h.HaulFee
	}
	n := float64(len(hauls))
	avgTons := totalTons / n
	avgCost := (totalFees / n) * cfg[KeyHaulFeeMultiplier]

	out := &Analysis{
		AverageTonsPerHaul:  round2(avgTons),
		CurrentHaulsPerYear: annualizedHauls(hauls),
		AvgCostPerHaul:      round2(avgCost),
	}

	if avgTons >= cfg[KeyThreshold] {
		return out
	}

	current := out.CurrentHaulsPerYear
	achievable := int(math.Ceil(float64(current) * avgTons / cfg[KeyTarget]))
	eliminated := current - achievable
	if eliminated <= 0 {
		return out
	}

	gross := float64(eliminated) * avgCost
	net := gross - cfg[KeyInstallCost] - cfg[KeyAnnualCost]
	if net <= 0 {
		// Below threshold but the monitors would not pay for themselves
		// in year one.
		return out
	}

	out.Recommend = true
	out.AchievableHaulsPerYear = achievable
	out.EliminatedHauls = eliminated
	out.GrossAnnualSavings = round2(gross)
	out.NetFirstYearSavings = round2(net)
	out.ROIPct = round2(net / (cfg[KeyInstallCost] + cfg[KeyAnnualCost]) * 100)
	if monthlyNet := (gross - cfg[KeyAnnualCost]) / 12; monthlyNet > 0 {
		out.PaybackMonths = round2(cfg[KeyInstallCost] / monthlyNet)
	}
	return out
}

// annualizedHauls scales the observed haul count to a yearly frequency using
// the span of the records. A degenerate span (single day) falls back to
// treating the records as a full year of history.
func annualizedHauls(hauls []store.HaulRecord) int {
	first, last := hauls[0].HauledAt, hauls[0].HauledAt
	for _, h := range hauls[1:] {
		if h.HauledAt.Before(first) {
			first = h.HauledAt
		}
		if h.HauledAt.After(last) {
			last = h.HauledAt
		}
	}
	spanDays := last.Sub(first).Hours() / 24
	if spanDays < 1 {
		return len(hauls)
	}
	return int(math.Round(float64(len(hauls)) * 365 / spanDays))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
