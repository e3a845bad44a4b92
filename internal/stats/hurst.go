package stats

import (
	"fmt"
	"math"

	"PairPull/internal/domain/models"
)

// HurstExponent estimates the Hurst exponent of a series with a
// rescaled-range (R/S) regression over a small set of sub-series lengths.
// H < 0.5 suggests mean reversion, H ≈ 0.5 a random walk, H > 0.5 a
// trending regime. Used by the regime-shift exit rule as a trend-strength
// indicator, nothing more.
func HurstExponent(xs []float64) (float64, error) {
	if len(xs) < 32 {
		return 0, fmt.Errorf("hurst: %d points: %w", len(xs), models.ErrInsufficientData)
	}

	var logN, logRS []float64
	for n := 8; n <= len(xs)/2; n *= 2 {
		rs, ok := avgRescaledRange(xs, n)
		if !ok {
			continue
		}
		logN = append(logN, math.Log(float64(n)))
		logRS = append(logRS, math.Log(rs))
	}
	if len(logN) < 2 {
		return 0, fmt.Errorf("hurst: %w", models.ErrDegenerateSpread)
	}

	cov, err := Covariance(logN, logRS)
	if err != nil {
		return 0, err
	}
	v, _ := Variance(logN)
	if v == 0 {
		return 0, fmt.Errorf("hurst: %w", models.ErrDegenerateSpread)
	}
	return cov / v, nil
}

// avgRescaledRange averages R/S over consecutive chunks of length n.
func avgRescaledRange(xs []float64, n int) (float64, bool) {
	var sum float64
	var count int
	for start := 0; start+n <= len(xs); start += n {
		chunk := xs[start : start+n]
		mean := Mean(chunk)

		var cum, minCum, maxCum, sq float64
		for _, x := range chunk {
			d := x - mean
			cum += d
			if cum < minCum {
				minCum = cum
			}
			if cum > maxCum {
				maxCum = cum
			}
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(n))
		if sd == 0 {
			continue
		}
		sum += (maxCum - minCum) / sd
		count++
	}
	if count == 0 || sum == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
