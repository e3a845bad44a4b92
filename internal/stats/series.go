// Package stats holds the pure numeric primitives behind pair evaluation:
// returns, correlation, OLS beta, log spread, rolling z-score, the
// stationarity proxy and half-life estimators, and the divergence profiler.
// Everything here is a pure function over float64 slices.
package stats

import (
	"fmt"
	"math"

	"PairPull/internal/domain/models"
)

// DefaultRollingWindow is the z-score window used when config does not
// override it.
const DefaultRollingWindow = 30

// Returns computes simple period-over-period percentage changes.
// len(result) == len(prices)-1. Needs at least 2 prices.
func Returns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("returns: %d prices: %w", len(prices), models.ErrInsufficientData)
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			return nil, fmt.Errorf("returns: zero price at %d: %w", i-1, models.ErrDegenerateSpread)
		}
		out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return out, nil
}

// Mean of xs. Zero for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Covariance is the sample covariance of two equal-length slices.
func Covariance(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("covariance: length mismatch %d vs %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("covariance: %d points: %w", len(xs), models.ErrInsufficientData)
	}
	mx, my := Mean(xs), Mean(ys)
	var sum float64
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)-1), nil
}

// Variance is the sample variance.
func Variance(xs []float64) (float64, error) {
	return Covariance(xs, xs)
}

// StdDev is the sample standard deviation.
func StdDev(xs []float64) (float64, error) {
	v, err := Variance(xs)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Correlation is the Pearson correlation of two paired return series.
// Undefined when either variance is zero; that makes the pair unusable
// (ErrDegenerateSpread), never a default value.
func Correlation(r1, r2 []float64) (float64, error) {
	cov, err := Covariance(r1, r2)
	if err != nil {
		return 0, err
	}
	v1, _ := Variance(r1)
	v2, _ := Variance(r2)
	if v1 == 0 || v2 == 0 {
		return 0, fmt.Errorf("correlation: zero variance: %w", models.ErrDegenerateSpread)
	}
	return cov / math.Sqrt(v1*v2), nil
}

// Beta is the OLS slope of r1 on r2: cov(r1,r2)/var(r2). A single-factor
// regression coefficient; outliers are not downweighted.
func Beta(r1, r2 []float64) (float64, error) {
	cov, err := Covariance(r1, r2)
	if err != nil {
		return 0, err
	}
	v2, _ := Variance(r2)
	if v2 == 0 {
		return 0, fmt.Errorf("beta: zero variance in r2: %w", models.ErrDegenerateSpread)
	}
	return cov / v2, nil
}

// LogSpread computes ln(p1) - beta*ln(p2) elementwise.
func LogSpread(p1, p2 []float64, beta float64) ([]float64, error) {
	if len(p1) != len(p2) {
		return nil, fmt.Errorf("log spread: length mismatch %d vs %d", len(p1), len(p2))
	}
	out := make([]float64, len(p1))
	for i := range p1 {
		if p1[i] <= 0 || p2[i] <= 0 {
			return nil, fmt.Errorf("log spread: non-positive price at %d: %w", i, models.ErrDegenerateSpread)
		}
		out[i] = math.Log(p1[i]) - beta*math.Log(p2[i])
	}
	return out, nil
}

// RollingZScore standardizes the last point of spread against the mean and
// sample standard deviation of the trailing window (window points, current
// included). A zero standard deviation is ErrDegenerateSpread: the caller
// must reject the pair, not read the z-score as 0.
func RollingZScore(spread []float64, window int) (float64, error) {
	if window < 2 {
		window = DefaultRollingWindow
	}
	if len(spread) < window {
		return 0, fmt.Errorf("rolling z: %d points, window %d: %w",
			len(spread), window, models.ErrInsufficientData)
	}
	tail := spread[len(spread)-window:]
	sd, err := StdDev(tail)
	if err != nil {
		return 0, err
	}
	if sd == 0 {
		return 0, fmt.Errorf("rolling z: %w", models.ErrDegenerateSpread)
	}
	return (tail[window-1] - Mean(tail)) / sd, nil
}

// RollingZSeries computes the rolling z-score at every index where a full
// window is available. The result starts at spread index window-1. Windows
// with zero standard deviation yield NaN entries, which downstream
// consumers skip.
func RollingZSeries(spread []float64, window int) ([]float64, error) {
	if window < 2 {
		window = DefaultRollingWindow
	}
	if len(spread) < window {
		return nil, fmt.Errorf("rolling z series: %d points, window %d: %w",
			len(spread), window, models.ErrInsufficientData)
	}
	out := make([]float64, 0, len(spread)-window+1)
	for end := window; end <= len(spread); end++ {
		win := spread[end-window : end]
		sd, err := StdDev(win)
		if err != nil {
			return nil, err
		}
		if sd == 0 {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, (win[window-1]-Mean(win))/sd)
	}
	return out, nil
}
