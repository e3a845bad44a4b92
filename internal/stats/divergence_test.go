package stats

import (
	"errors"
	"math"
	"testing"
	"time"

	"PairPull/internal/domain/models"
)

var testPair = models.Pair{Symbol1: "AAA", Symbol2: "BBB"}

func TestProfileSingleCrossingReverts(t *testing.T) {
	// Exactly one crossing of 2.0 that later reverts below 0.5.
	zs := []float64{0.2, 1.1, 2.3, 1.4, 0.3, 0.1}

	prof, err := BuildDivergenceProfile(testPair, zs, DefaultThresholdLadder(), 1.5, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := thresholdRow(t, prof, 2.0)
	if row.Events != 1 || row.Reverted != 1 {
		t.Fatalf("threshold 2.0: events=%d reverted=%d, want 1/1", row.Events, row.Reverted)
	}
	if row.ReversionRate != 1.0 {
		t.Fatalf("threshold 2.0: reversion rate %v, want 1.0", row.ReversionRate)
	}
	if prof.OptimalEntryThreshold != 2.0 {
		t.Fatalf("optimal entry %v, want 2.0", prof.OptimalEntryThreshold)
	}
	if math.Abs(prof.MaxHistoricalAbsZ-2.3) > 1e-12 {
		t.Fatalf("max |z| %v, want 2.3", prof.MaxHistoricalAbsZ)
	}
}

func TestProfileNegativeCrossingsCountViaAbs(t *testing.T) {
	zs := []float64{-0.2, -1.2, -2.6, -1.1, -0.4}
	prof, err := BuildDivergenceProfile(testPair, zs, DefaultThresholdLadder(), 1.5, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := thresholdRow(t, prof, 2.5)
	if row.Events != 1 || row.Reverted != 1 {
		t.Fatalf("threshold 2.5: events=%d reverted=%d, want 1/1", row.Events, row.Reverted)
	}
	if prof.OptimalEntryThreshold != 2.5 {
		t.Fatalf("optimal entry %v, want 2.5", prof.OptimalEntryThreshold)
	}
}

func TestProfileFallbackToFloor(t *testing.T) {
	// Crossing of 2.0 that never reverts: no threshold has a perfect
	// reversion rate, so the profiler falls back to the ladder floor,
	// clamped up to the configured entry floor.
	zs := []float64{0.2, 1.2, 2.4, 2.6, 2.2, 2.8}
	prof, err := BuildDivergenceProfile(testPair, zs, DefaultThresholdLadder(), 1.5, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := thresholdRow(t, prof, 2.0)
	if row.Events != 1 || row.Reverted != 0 {
		t.Fatalf("threshold 2.0: events=%d reverted=%d, want 1/0", row.Events, row.Reverted)
	}
	if prof.OptimalEntryThreshold != 1.5 {
		t.Fatalf("optimal entry %v, want floor 1.5", prof.OptimalEntryThreshold)
	}
}

func TestProfileSkipsNaNWindows(t *testing.T) {
	zs := []float64{0.2, math.NaN(), 2.3, 1.0, 0.2}
	prof, err := BuildDivergenceProfile(testPair, zs, DefaultThresholdLadder(), 1.5, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.2 -> 2.3 still counts as a crossing of 2.0 with the NaN skipped.
	row := thresholdRow(t, prof, 2.0)
	if row.Events != 1 {
		t.Fatalf("threshold 2.0: events=%d, want 1", row.Events)
	}
}

func TestProfileStaleness(t *testing.T) {
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	prof, err := BuildDivergenceProfile(testPair, []float64{0.1, 2.2, 0.2}, nil, 0, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !prof.CurrentFor(end) {
		t.Fatalf("profile should be current for its own window end")
	}
	if prof.CurrentFor(end.Add(24 * time.Hour)) {
		t.Fatalf("profile should be stale once the window advances")
	}
}

func TestProfileTooShort(t *testing.T) {
	_, err := BuildDivergenceProfile(testPair, []float64{1.0}, nil, 0, time.Now())
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func thresholdRow(t *testing.T, prof models.DivergenceProfile, threshold float64) models.ThresholdStats {
	t.Helper()
	for _, row := range prof.Thresholds {
		if row.Threshold == threshold {
			return row
		}
	}
	t.Fatalf("threshold %v missing from profile", threshold)
	return models.ThresholdStats{}
}
