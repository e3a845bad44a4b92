package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"PairPull/internal/domain/models"
)

// ar1Series generates s[t] = phi*s[t-1] + noise with a fixed seed.
func ar1Series(phi float64, n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	s := make([]float64, n)
	for i := 1; i < n; i++ {
		s[i] = phi*s[i-1] + rng.NormFloat64()
	}
	return s
}

func TestHalfLifeEstimatorsOnKnownAR1(t *testing.T) {
	phi := 0.8
	spread := ar1Series(phi, 4000, 42)

	res, err := EstimateCointegration(spread, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.HalfLifeAR1.Infinite {
		t.Fatalf("AR(1) half-life should be finite")
	}
	if res.HalfLifeAutocorr.Infinite {
		t.Fatalf("autocorr half-life should be finite")
	}
	if res.HalfLifeAR1.Days <= 0 || res.HalfLifeAutocorr.Days <= 0 {
		t.Fatalf("half-lives must be positive: ar1=%v autocorr=%v",
			res.HalfLifeAR1.Days, res.HalfLifeAutocorr.Days)
	}

	want := -math.Ln2 / math.Log(phi)
	if res.HalfLifeAR1.Days < want*0.5 || res.HalfLifeAR1.Days > want*1.5 {
		t.Fatalf("AR(1) half-life %v too far from theoretical %v", res.HalfLifeAR1.Days, want)
	}
	// The diff-autocorrelation mapping approximates phi by (1+phi)/2 on an
	// AR(1), so its estimate runs long. Bounded, not tight.
	if res.HalfLifeAutocorr.Days < want*0.8 || res.HalfLifeAutocorr.Days > want*5 {
		t.Fatalf("autocorr half-life %v too far from theoretical %v", res.HalfLifeAutocorr.Days, want)
	}
}

func TestCointegrationVerdictMeanReverting(t *testing.T) {
	spread := ar1Series(0.8, 600, 42)
	res, err := EstimateCointegration(spread, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MeanReversionRate <= 0.5 {
		t.Fatalf("mean reversion rate %v should exceed 0.5", res.MeanReversionRate)
	}
	if !res.IsCointegrated {
		t.Fatalf("mean-reverting AR(1) should be flagged cointegrated (rho=%v mrr=%v adf=%v)",
			res.Rho, res.MeanReversionRate, res.ADFStat)
	}
}

func TestCointegrationVerdictTrending(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	spread := make([]float64, 400)
	for i := 1; i < len(spread); i++ {
		spread[i] = spread[i-1] + 0.5 + 0.05*rng.NormFloat64()
	}

	res, err := EstimateCointegration(spread, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsCointegrated {
		t.Fatalf("trending series must not be cointegrated (rho=%v mrr=%v adf=%v)",
			res.Rho, res.MeanReversionRate, res.ADFStat)
	}
	if !res.HalfLifeAR1.Infinite {
		t.Fatalf("random-walk AR(1) half-life should be infinite, got %v", res.HalfLifeAR1.Days)
	}
}

func TestCointegrationTooShort(t *testing.T) {
	_, err := EstimateCointegration([]float64{1, 2, 3}, 30)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestHeadlineHalfLifePrefersAR1(t *testing.T) {
	res := CointegrationResult{
		HalfLifeAutocorr: models.FiniteHalfLife(6),
		HalfLifeAR1:      models.FiniteHalfLife(3),
	}
	if hl := res.HalfLife(); hl.Infinite || hl.Days != 3 {
		t.Fatalf("expected AR(1) headline, got %+v", hl)
	}

	res.HalfLifeAR1 = models.InfiniteHalfLife()
	if hl := res.HalfLife(); hl.Infinite || hl.Days != 6 {
		t.Fatalf("expected autocorr fallback, got %+v", hl)
	}
}

func TestHalfLifeDivergenceFlag(t *testing.T) {
	if halfLivesDiverged(models.FiniteHalfLife(10), models.FiniteHalfLife(12)) {
		t.Fatalf("20%% gap should not be flagged")
	}
	if !halfLivesDiverged(models.FiniteHalfLife(10), models.FiniteHalfLife(14)) {
		t.Fatalf("40%% gap should be flagged")
	}
	if !halfLivesDiverged(models.FiniteHalfLife(10), models.InfiniteHalfLife()) {
		t.Fatalf("finite vs infinite should be flagged")
	}
}
