package stats

import (
	"fmt"
	"math"

	"PairPull/internal/domain/models"
)

// Half-life estimates outside this range (in days) are treated as infinite:
// no mean reversion a time-stop could act on.
const maxTradeableHalfLifeDays = 1000

// CointegrationResult is the verdict of the stationarity proxy plus both
// half-life estimators for a log-spread series.
//
// The stationarity test is an autocorrelation-based approximation of an
// Augmented Dickey-Fuller test, not a rigorous ADF implementation. Callers
// making risk decisions must treat IsCointegrated as a heuristic.
type CointegrationResult struct {
	ADFStat           float64
	Rho               float64 // lag-1 autocorrelation of spread differences
	IsCointegrated    bool
	MeanReversionRate float64

	// Two independent estimators, kept side by side on purpose. They can
	// disagree by more than 50%; that disagreement is a data-quality signal
	// (Diverged), not something to resolve silently.
	HalfLifeAutocorr models.HalfLife
	HalfLifeAR1      models.HalfLife
	Diverged         bool
}

// HalfLife returns the headline estimate: AR(1) when finite, otherwise the
// autocorrelation estimate.
func (r CointegrationResult) HalfLife() models.HalfLife {
	if !r.HalfLifeAR1.Infinite {
		return r.HalfLifeAR1
	}
	return r.HalfLifeAutocorr
}

// EstimateCointegration runs the stationarity proxy on a log-spread series
// of at least 10 points. window sizes the rolling mean used by the
// mean-reversion rate.
func EstimateCointegration(spread []float64, window int) (CointegrationResult, error) {
	if len(spread) < 10 {
		return CointegrationResult{}, fmt.Errorf("cointegration: %d points: %w",
			len(spread), models.ErrInsufficientData)
	}

	diffs := make([]float64, len(spread)-1)
	for i := 1; i < len(spread); i++ {
		diffs[i-1] = spread[i] - spread[i-1]
	}

	rho, err := lag1Autocorr(diffs)
	if err != nil {
		return CointegrationResult{}, fmt.Errorf("cointegration: %w", err)
	}

	res := CointegrationResult{Rho: rho}
	res.ADFStat = -rho * math.Sqrt(float64(len(diffs)))
	res.MeanReversionRate = meanReversionRate(spread, window)
	res.IsCointegrated = res.ADFStat < -2.5 ||
		(res.MeanReversionRate > 0.5 && math.Abs(rho) < 0.3)

	res.HalfLifeAutocorr = halfLifeFromAutocorr(rho)
	res.HalfLifeAR1 = halfLifeFromAR1(spread)
	res.Diverged = halfLivesDiverged(res.HalfLifeAutocorr, res.HalfLifeAR1)

	return res, nil
}

// halfLifeFromAutocorr maps the diff autocorrelation to a half-life:
// -ln(2)/ln(1+rho), valid only for -1 < rho < 0.
func halfLifeFromAutocorr(rho float64) models.HalfLife {
	if rho <= -1 || rho >= 0 {
		return models.InfiniteHalfLife()
	}
	return clampHalfLife(-math.Ln2 / math.Log(1+rho))
}

// halfLifeFromAR1 regresses spread[t] on spread[t-1] and maps the slope phi
// to -ln(2)/ln(phi), valid only for 0 < phi < 1.
func halfLifeFromAR1(spread []float64) models.HalfLife {
	lagged := spread[:len(spread)-1]
	current := spread[1:]

	cov, err := Covariance(lagged, current)
	if err != nil {
		return models.InfiniteHalfLife()
	}
	v, _ := Variance(lagged)
	if v == 0 {
		return models.InfiniteHalfLife()
	}
	phi := cov / v
	if phi <= 0 || phi >= 1 {
		return models.InfiniteHalfLife()
	}
	return clampHalfLife(-math.Ln2 / math.Log(phi))
}

func clampHalfLife(days float64) models.HalfLife {
	if math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 || days >= maxTradeableHalfLifeDays {
		return models.InfiniteHalfLife()
	}
	return models.FiniteHalfLife(days)
}

// halfLivesDiverged flags a >30% relative gap between two finite estimates.
func halfLivesDiverged(a, b models.HalfLife) bool {
	if a.Infinite || b.Infinite {
		return a.Infinite != b.Infinite
	}
	hi, lo := a.Days, b.Days
	if lo > hi {
		hi, lo = lo, hi
	}
	if lo == 0 {
		return true
	}
	return (hi-lo)/lo > 0.30
}

// lag1Autocorr of xs.
func lag1Autocorr(xs []float64) (float64, error) {
	if len(xs) < 3 {
		return 0, fmt.Errorf("lag-1 autocorr: %d points: %w", len(xs), models.ErrInsufficientData)
	}
	v, err := Variance(xs)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("lag-1 autocorr: %w", models.ErrDegenerateSpread)
	}
	cov, err := Covariance(xs[:len(xs)-1], xs[1:])
	if err != nil {
		return 0, err
	}
	return cov / v, nil
}

// meanReversionRate is the fraction of adjacent spread moves pointing back
// toward the rolling mean of the preceding window.
func meanReversionRate(spread []float64, window int) float64 {
	if window < 2 {
		window = DefaultRollingWindow
	}
	var toward, total int
	for t := 1; t < len(spread); t++ {
		start := t - window
		if start < 0 {
			start = 0
		}
		mean := Mean(spread[start:t])
		prev := spread[t-1]
		if prev == mean {
			continue
		}
		total++
		if (prev > mean && spread[t] < prev) || (prev < mean && spread[t] > prev) {
			toward++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(toward) / float64(total)
}
