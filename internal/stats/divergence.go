package stats

import (
	"fmt"
	"math"
	"time"

	"PairPull/internal/domain/models"
)

const (
	// RevertedBand is the |z| band below which a divergence event counts
	// as reverted.
	RevertedBand = 0.5

	// DefaultEntryFloor is the lowest entry threshold the profiler will
	// recommend regardless of what the table says. Guards against
	// overfitting a low threshold to a handful of events.
	DefaultEntryFloor = 1.5
)

// DefaultThresholdLadder is the candidate entry thresholds profiled when
// config does not override them.
func DefaultThresholdLadder() []float64 {
	return []float64{1.0, 1.5, 2.0, 2.5, 3.0}
}

// BuildDivergenceProfile scans a z-score series (oldest first) and counts,
// per ladder threshold, crossings of |z| from below to at-or-above the
// threshold and how many of those reverted to |z| < RevertedBand before the
// series ended. The series must only contain data up to the decision point
// the profile supports; there is no look-ahead beyond the series itself.
//
// NaN entries (degenerate windows) are skipped.
func BuildDivergenceProfile(pair models.Pair, zs []float64, ladder []float64, entryFloor float64, windowEnd time.Time) (models.DivergenceProfile, error) {
	if len(zs) < 2 {
		return models.DivergenceProfile{}, fmt.Errorf("divergence profile: %d points: %w",
			len(zs), models.ErrInsufficientData)
	}
	if len(ladder) == 0 {
		ladder = DefaultThresholdLadder()
	}
	if entryFloor < 1.0 {
		entryFloor = DefaultEntryFloor
	}

	prof := models.DivergenceProfile{
		Pair:       pair,
		WindowEnd:  windowEnd,
		ComputedAt: time.Now().UTC(),
	}

	for _, z := range zs {
		if !math.IsNaN(z) && math.Abs(z) > prof.MaxHistoricalAbsZ {
			prof.MaxHistoricalAbsZ = math.Abs(z)
		}
	}

	for _, threshold := range ladder {
		ts := models.ThresholdStats{Threshold: threshold}
		prevAbs := math.NaN()
		for i, z := range zs {
			if math.IsNaN(z) {
				continue
			}
			abs := math.Abs(z)
			crossed := !math.IsNaN(prevAbs) && prevAbs < threshold && abs >= threshold
			prevAbs = abs
			if !crossed {
				continue
			}
			ts.Events++
			if revertsAfter(zs, i) {
				ts.Reverted++
			}
		}
		if ts.Events > 0 {
			ts.ReversionRate = float64(ts.Reverted) / float64(ts.Events)
		}
		prof.Thresholds = append(prof.Thresholds, ts)
	}

	prof.OptimalEntryThreshold = optimalEntry(prof.Thresholds, ladder, entryFloor)
	return prof, nil
}

// revertsAfter reports whether |z| drops below RevertedBand strictly after
// index i.
func revertsAfter(zs []float64, i int) bool {
	for _, z := range zs[i+1:] {
		if math.IsNaN(z) {
			continue
		}
		if math.Abs(z) < RevertedBand {
			return true
		}
	}
	return false
}

// optimalEntry picks the highest ladder threshold with at least one event
// and a perfect reversion rate; otherwise the lowest ladder value. Either
// way the result never drops below the floor.
func optimalEntry(rows []models.ThresholdStats, ladder []float64, floor float64) float64 {
	best := math.NaN()
	for _, ts := range rows {
		if ts.Events >= 1 && ts.ReversionRate == 1.0 {
			if math.IsNaN(best) || ts.Threshold > best {
				best = ts.Threshold
			}
		}
	}
	if math.IsNaN(best) {
		best = ladder[0]
		for _, t := range ladder[1:] {
			if t < best {
				best = t
			}
		}
	}
	if best < floor {
		best = floor
	}
	return best
}
