package usecase

import (
	"context"
	"fmt"
	"time"

	"PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	applogger "PairPull/pkg/logger"
)

// PairAnalyzer serves on-demand pair analysis: fetch both legs, align,
// evaluate. Unlike the scanner it takes arbitrary symbols and an optional
// historical cutoff, so it can replay how a pair looked on a past date.
type PairAnalyzer struct {
	source drepo.PriceSource
	eval   *PairEvaluator
	log    *applogger.Logger
}

func NewPairAnalyzer(source drepo.PriceSource, eval *PairEvaluator, log *applogger.Logger) *PairAnalyzer {
	return &PairAnalyzer{source: source, eval: eval, log: log}
}

// Analyze fetches days of daily closes for both symbols and evaluates the
// pair. A non-zero cutoff truncates the series before any computation.
func (a *PairAnalyzer) Analyze(ctx context.Context, symbol1, symbol2 string, days int, cutoff time.Time) (models.AnalyzeResult, error) {
	s1, err := a.source.GetDailyCloses(ctx, symbol1, days)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("fetch %s: %w", symbol1, err)
	}
	s2, err := a.source.GetDailyCloses(ctx, symbol2, days)
	if err != nil {
		return models.AnalyzeResult{}, fmt.Errorf("fetch %s: %w", symbol2, err)
	}

	aligned, err := models.AlignPair(s1, s2)
	if err != nil {
		return models.AnalyzeResult{}, err
	}

	res, err := a.eval.Evaluate(aligned, cutoff)
	if err != nil {
		return models.AnalyzeResult{}, err
	}
	if a.log != nil {
		a.log.Debug("pair analyzed",
			applogger.String("pair", aligned.Pair.String()),
			applogger.Float64("correlation", res.Verdict.Correlation),
			applogger.Float64("z_score", res.Verdict.CurrentZScore),
		)
	}
	return res, nil
}
