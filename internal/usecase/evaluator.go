package usecase

import (
	"fmt"
	"time"

	"PairPull/internal/domain/models"
	"PairPull/internal/stats"
)

// PairEvaluator composes the numeric primitives into one fitness verdict
// plus one divergence profile per pair. It is pure computation: no fetching,
// no retries. Upstream failures belong to the price-data collaborator.
type PairEvaluator struct {
	window     int
	ladder     []float64
	entryFloor float64
}

// NewPairEvaluator creates an evaluator. window is the rolling z-score
// window (default 30), ladder the candidate entry thresholds, entryFloor
// the lowest entry threshold ever recommended.
func NewPairEvaluator(window int, ladder []float64, entryFloor float64) *PairEvaluator {
	if window < 2 {
		window = stats.DefaultRollingWindow
	}
	if len(ladder) == 0 {
		ladder = stats.DefaultThresholdLadder()
	}
	if entryFloor < 1.0 {
		entryFloor = stats.DefaultEntryFloor
	}
	return &PairEvaluator{window: window, ladder: ladder, entryFloor: entryFloor}
}

// Evaluate produces a verdict and divergence profile for an aligned pair.
// A non-zero cutoff excludes all data after it before anything is computed
// (backtesting support). Rejections are ErrInsufficientData or
// ErrDegenerateSpread; both are local to the pair.
func (e *PairEvaluator) Evaluate(ps models.PairSeries, cutoff time.Time) (models.AnalyzeResult, error) {
	ps, err := ps.Before(cutoff)
	if err != nil {
		return models.AnalyzeResult{}, err
	}

	r1, err := stats.Returns(ps.Closes1)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("%s returns: %w", ps.Pair.Symbol1, err)
	}
	r2, err := stats.Returns(ps.Closes2)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("%s returns: %w", ps.Pair.Symbol2, err)
	}

	corr, err := stats.Correlation(r1, r2)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("correlation %s: %w", ps.Pair, err)
	}
	beta, err := stats.Beta(r1, r2)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("beta %s: %w", ps.Pair, err)
	}

	spread, err := stats.LogSpread(ps.Closes1, ps.Closes2, beta)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("spread %s: %w", ps.Pair, err)
	}

	sd, err := stats.StdDev(spread)
	if err != nil {
		return models.AnalyzeResult{}, err
	}
	if sd == 0 {
		return models.AnalyzeResult{}, fmt.Errorf("spread %s: %w", ps.Pair, models.ErrDegenerateSpread)
	}

	// Short histories get a shrunk window. One shorter than the series, so
	// the rolling z series keeps at least two points for the profiler even
	// at the minimum aligned length.
	window := e.window
	if len(spread) <= window {
		window = len(spread) - 1
	}

	z, err := stats.RollingZScore(spread, window)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("z-score %s: %w", ps.Pair, err)
	}

	coint, err := stats.EstimateCointegration(spread, window)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("cointegration %s: %w", ps.Pair, err)
	}

	zs, err := stats.RollingZSeries(spread, window)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("z series %s: %w", ps.Pair, err)
	}
	windowEnd := ps.Times[ps.Len()-1]
	prof, err := stats.BuildDivergenceProfile(ps.Pair, zs, e.ladder, e.entryFloor, windowEnd)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("divergence profile %s: %w", ps.Pair, err)
	}

	verdict := models.FitnessVerdict{
		Pair:              ps.Pair,
		Correlation:       corr,
		Beta:              beta,
		MeanSpread:        stats.Mean(spread),
		StdDevSpread:      sd,
		CurrentZScore:     z,
		HalfLife:          coint.HalfLife(),
		HalfLifeAutocorr:  coint.HalfLifeAutocorr,
		HalfLifeAR1:       coint.HalfLifeAR1,
		HalfLifeDiverged:  coint.Diverged,
		IsCointegrated:    coint.IsCointegrated,
		ADFStat:           coint.ADFStat,
		MeanReversionRate: coint.MeanReversionRate,
		Observations:      ps.Len(),
		EvaluatedAt:       time.Now().UTC(),
	}

	return models.AnalyzeResult{Verdict: verdict, Profile: prof, Spread: spread}, nil
}
