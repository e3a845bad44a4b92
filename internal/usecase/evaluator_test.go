package usecase

import (
	"testing"
	"time"

	"PairPull/internal/domain/models"
)

func alignedPair(t *testing.T, closes1, closes2 []float64) models.PairSeries {
	t.Helper()
	s1 := models.PriceSeries{Symbol: "AAAUSDT"}
	s2 := models.PriceSeries{Symbol: "BBBUSDT"}
	for i := range closes1 {
		ts := scanStart.AddDate(0, 0, i)
		s1.Points = append(s1.Points, models.PricePoint{Timestamp: ts, Close: closes1[i]})
		s2.Points = append(s2.Points, models.PricePoint{Timestamp: ts, Close: closes2[i]})
	}
	ps, err := models.AlignPair(s1, s2)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	return ps
}

// The shortest series AlignPair accepts must also evaluate: the acceptance
// boundary belongs to the data model, not the rolling window.
func TestEvaluateAtMinimumObservations(t *testing.T) {
	closes1, closes2 := cointegratedLegs(models.MinAlignedObservations, 7)
	ps := alignedPair(t, closes1, closes2)

	eval := NewPairEvaluator(30, nil, 0)
	res, err := eval.Evaluate(ps, time.Time{})
	if err != nil {
		t.Fatalf("evaluate at %d observations: %v", models.MinAlignedObservations, err)
	}
	if res.Verdict.Observations != models.MinAlignedObservations {
		t.Errorf("observations = %d, want %d", res.Verdict.Observations, models.MinAlignedObservations)
	}
	if len(res.Profile.Thresholds) == 0 {
		t.Errorf("divergence profile has no threshold rows")
	}
	if res.Profile.OptimalEntryThreshold < 1.5 {
		t.Errorf("optimal entry %v below the floor", res.Profile.OptimalEntryThreshold)
	}
}

// A series exactly as long as the configured window must still leave the
// profiler at least two rolling z points.
func TestEvaluateAtWindowLength(t *testing.T) {
	const n = 30
	closes1, closes2 := cointegratedLegs(n, 11)
	ps := alignedPair(t, closes1, closes2)

	eval := NewPairEvaluator(n, nil, 0)
	res, err := eval.Evaluate(ps, time.Time{})
	if err != nil {
		t.Fatalf("evaluate at window length: %v", err)
	}
	if res.Verdict.Observations != n {
		t.Errorf("observations = %d, want %d", res.Verdict.Observations, n)
	}
}
