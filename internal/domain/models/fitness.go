package models

import "time"

// HalfLife is a half-life estimate in days. Infinite means no mean
// reversion was detected (or the estimate fell outside the tradeable
// range); Days is meaningless when Infinite is set. A struct rather than
// math.Inf so the value survives JSON round-trips.
type HalfLife struct {
	Days     float64 `json:"days"`
	Infinite bool    `json:"infinite"`
}

// InfiniteHalfLife returns the "no mean reversion" sentinel.
func InfiniteHalfLife() HalfLife { return HalfLife{Infinite: true} }

// FiniteHalfLife returns a finite half-life of d days.
func FiniteHalfLife(d float64) HalfLife { return HalfLife{Days: d} }

// AtMost reports whether the half-life is finite and no greater than max.
func (h HalfLife) AtMost(max float64) bool {
	return !h.Infinite && h.Days <= max
}

// FitnessVerdict is the per-pair evaluation result. Recomputed on every
// evaluation; never mutated in place.
type FitnessVerdict struct {
	Pair        Pair    `json:"pair"`
	Correlation float64 `json:"correlation"`
	Beta        float64 `json:"beta"`

	MeanSpread    float64 `json:"mean_spread"`
	StdDevSpread  float64 `json:"std_dev_spread"`
	CurrentZScore float64 `json:"current_z_score"`

	// Both half-life estimators are exposed on purpose. They can disagree
	// by more than 50% and that disagreement is itself diagnostic; HalfLife
	// is the headline value (AR(1) when finite, else autocorrelation) and
	// HalfLifeDiverged is set when the two differ by more than 30%.
	HalfLife         HalfLife `json:"half_life"`
	HalfLifeAutocorr HalfLife `json:"half_life_autocorr"`
	HalfLifeAR1      HalfLife `json:"half_life_ar1"`
	HalfLifeDiverged bool     `json:"half_life_diverged"`

	// IsCointegrated comes from an autocorrelation-based stationarity
	// proxy, not a rigorous ADF test. Do not treat it as a validated
	// statistical verdict for risk decisions.
	IsCointegrated    bool    `json:"is_cointegrated"`
	ADFStat           float64 `json:"adf_stat"`
	MeanReversionRate float64 `json:"mean_reversion_rate"`

	Observations int       `json:"observations"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// ThresholdStats is one row of a divergence profile: how often |z| crossed
// the threshold and how often it reverted afterwards.
type ThresholdStats struct {
	Threshold     float64 `json:"threshold"`
	Events        int     `json:"events"`
	Reverted      int     `json:"reverted"`
	ReversionRate float64 `json:"reversion_rate"`
}

// DivergenceProfile is the empirical threshold table for a pair over one
// lookback window. It is stale once the window advances and must then be
// recomputed, never patched.
type DivergenceProfile struct {
	Pair       Pair             `json:"pair"`
	Thresholds []ThresholdStats `json:"thresholds"`

	OptimalEntryThreshold float64 `json:"optimal_entry_threshold"`
	MaxHistoricalAbsZ     float64 `json:"max_historical_abs_z"`

	// WindowEnd is the timestamp of the last observation the profile saw.
	// A profile whose WindowEnd predates the series being monitored is
	// stale (ErrStaleDivergenceProfile).
	WindowEnd  time.Time `json:"window_end"`
	ComputedAt time.Time `json:"computed_at"`
}

// CurrentFor reports whether the profile still covers a series whose last
// observation is at seriesEnd.
func (p DivergenceProfile) CurrentFor(seriesEnd time.Time) bool {
	return !p.WindowEnd.Before(seriesEnd)
}

// ReversionRateAt returns the empirical reversion rate for the given
// threshold, or 0 when the threshold is not in the table.
func (p DivergenceProfile) ReversionRateAt(threshold float64) float64 {
	for _, ts := range p.Thresholds {
		if ts.Threshold == threshold {
			return ts.ReversionRate
		}
	}
	return 0
}
