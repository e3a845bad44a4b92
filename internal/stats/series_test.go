package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"PairPull/internal/domain/models"
)

func TestReturnsLengthAndValues(t *testing.T) {
	prices := []float64{100, 110, 99}
	r, err := Returns(prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(r))
	}
	if math.Abs(r[0]-0.1) > 1e-12 {
		t.Fatalf("unexpected first return %v", r[0])
	}
	if math.Abs(r[1]-(-0.1)) > 1e-12 {
		t.Fatalf("unexpected second return %v", r[1])
	}
}

func TestReturnsTooShort(t *testing.T) {
	if _, err := Returns([]float64{100}); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCorrelationBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r1 := make([]float64, 200)
	r2 := make([]float64, 200)
	for i := range r1 {
		r1[i] = rng.NormFloat64()
		r2[i] = 0.4*r1[i] + rng.NormFloat64()
	}
	c, err := Correlation(r1, r2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c < -1 || c > 1 {
		t.Fatalf("correlation out of [-1,1]: %v", c)
	}
	if c <= 0 {
		t.Fatalf("expected positive correlation, got %v", c)
	}
}

func TestCorrelationPerfect(t *testing.T) {
	r := []float64{0.01, -0.02, 0.03, 0.005, -0.01}
	c, err := Correlation(r, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(c-1) > 1e-12 {
		t.Fatalf("expected correlation 1, got %v", c)
	}
}

func TestCorrelationZeroVariance(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	moving := []float64{0.01, -0.02, 0.03, 0.01}
	if _, err := Correlation(flat, moving); !errors.Is(err, models.ErrDegenerateSpread) {
		t.Fatalf("expected ErrDegenerateSpread, got %v", err)
	}
}

func TestBetaMatchesClosedForm(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	r2 := make([]float64, 300)
	r1 := make([]float64, 300)
	for i := range r2 {
		r2[i] = rng.NormFloat64() * 0.02
		r1[i] = 1.5*r2[i] + rng.NormFloat64()*0.001
	}

	b, err := Beta(r1, r2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Independent closed-form OLS slope.
	var sx, sy, sxx, sxy float64
	n := float64(len(r2))
	for i := range r2 {
		sx += r2[i]
		sy += r1[i]
		sxx += r2[i] * r2[i]
		sxy += r2[i] * r1[i]
	}
	want := (n*sxy - sx*sy) / (n*sxx - sx*sx)

	if math.Abs(b-want) > 1e-9 {
		t.Fatalf("beta %v does not match closed form %v", b, want)
	}
	if math.Abs(b-1.5) > 0.05 {
		t.Fatalf("beta %v too far from true 1.5", b)
	}
}

func TestLogSpread(t *testing.T) {
	p1 := []float64{math.E, math.E * math.E}
	p2 := []float64{math.E, math.E}
	s, err := LogSpread(p1, p2, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(s[0]-(-1)) > 1e-12 {
		t.Fatalf("unexpected spread[0] %v", s[0])
	}
	if math.Abs(s[1]-0) > 1e-12 {
		t.Fatalf("unexpected spread[1] %v", s[1])
	}
}

func TestRollingZScoreConstantWindowIsDegenerate(t *testing.T) {
	spread := make([]float64, 40)
	for i := range spread {
		spread[i] = 1.25
	}
	_, err := RollingZScore(spread, 30)
	if !errors.Is(err, models.ErrDegenerateSpread) {
		t.Fatalf("expected ErrDegenerateSpread, got %v", err)
	}
}

func TestRollingZScoreValue(t *testing.T) {
	// Window of 30: 29 zeros then a 3. Mean and stddev are computed over
	// the window including the current point.
	spread := make([]float64, 30)
	spread[29] = 3
	z, err := RollingZScore(spread, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mean := 0.1
	sd, _ := StdDev(spread)
	want := (3 - mean) / sd
	if math.Abs(z-want) > 1e-9 {
		t.Fatalf("z %v, want %v", z, want)
	}
	if z <= 0 {
		t.Fatalf("expected positive z, got %v", z)
	}
}

func TestRollingZSeriesLength(t *testing.T) {
	spread := make([]float64, 50)
	for i := range spread {
		spread[i] = math.Sin(float64(i) / 3)
	}
	zs, err := RollingZSeries(spread, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(zs) != 21 {
		t.Fatalf("expected 21 z-scores, got %d", len(zs))
	}
}

func TestHurstTrendingVsMeanReverting(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	trend := make([]float64, 256)
	for i := 1; i < len(trend); i++ {
		trend[i] = trend[i-1] + 1 + 0.1*rng.NormFloat64()
	}
	reverting := make([]float64, 256)
	for i := 1; i < len(reverting); i++ {
		reverting[i] = -0.6*reverting[i-1] + rng.NormFloat64()
	}

	hTrend, err := HurstExponent(trend)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hRev, err := HurstExponent(reverting)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hTrend <= hRev {
		t.Fatalf("expected trending H (%v) > reverting H (%v)", hTrend, hRev)
	}
}
