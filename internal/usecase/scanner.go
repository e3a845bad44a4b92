package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	"PairPull/pkg/logger"
)

// ScannerConfig holds the discovery knobs. All pass-through configuration;
// no logic here branches on where a value came from.
type ScannerConfig struct {
	MinQuoteVolume  float64
	MinOpenInterest float64
	Blacklist       []string

	MinCorrelation  float64
	MaxHalfLifeDays float64

	LookbackDays     int
	TopPerSector     int
	CrossSectorTopK  int
	FetchConcurrency int
}

// WatchlistScanner runs the batch discovery pipeline: universe -> liquidity
// filter -> sector grouping -> candidate pairs -> evaluation -> scoring ->
// bounded watchlist. Output replaces the persisted watchlist wholesale.
type WatchlistScanner struct {
	source  drepo.PriceSource
	store   drepo.StateStore
	events  drepo.EventPublisher
	metrics drepo.Metrics
	eval    *PairEvaluator
	log     *logger.Logger
	cfg     ScannerConfig
}

func NewWatchlistScanner(
	source drepo.PriceSource,
	store drepo.StateStore,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	eval *PairEvaluator,
	log *logger.Logger,
	cfg ScannerConfig,
) *WatchlistScanner {
	if cfg.LookbackDays < models.MinAlignedObservations {
		cfg.LookbackDays = 90
	}
	if cfg.TopPerSector < 1 {
		cfg.TopPerSector = 5
	}
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 4
	}
	return &WatchlistScanner{
		source: source, store: store, events: events,
		metrics: metrics, eval: eval, log: log, cfg: cfg,
	}
}

// Scan runs one full discovery pass and atomically replaces the persisted
// watchlist. A failure on one pair never aborts the batch.
func (s *WatchlistScanner) Scan(ctx context.Context) (models.Watchlist, error) {
	start := time.Now()

	universe, err := s.source.GetUniverse(ctx)
	if err != nil {
		s.metrics.RecordError("universe_fetch")
		return models.Watchlist{}, fmt.Errorf("fetch universe: %w", err)
	}

	assets := s.filterUniverse(universe)
	bySector := groupBySector(assets)
	candidates := s.candidatePairs(bySector)
	s.log.Info("scan universe ready",
		logger.Int("assets", len(assets)),
		logger.Int("sectors", len(bySector)),
		logger.Int("candidates", len(candidates)))

	series := s.fetchSeries(ctx, candidates)

	entries := s.evaluateCandidates(ctx, candidates, series)
	entries = s.rankPerSector(entries)

	watchlist := models.Watchlist{
		Entries:   entries,
		ScannedAt: time.Now().UTC(),
		Version:   time.Now().UnixNano(),
	}

	if err := s.store.ReplaceWatchlist(ctx, watchlist); err != nil {
		s.metrics.RecordError("watchlist_write")
		return models.Watchlist{}, fmt.Errorf("replace watchlist: %w", err)
	}
	if s.events != nil {
		if err := s.events.PublishWatchlist(ctx, watchlist); err != nil {
			// Event fan-out is best effort; the swap already happened.
			s.log.Warn("watchlist publish failed", logger.Error(err))
		}
	}

	s.metrics.RecordWatchlistSize(len(entries))
	s.metrics.RecordCycleDuration("scan", time.Since(start).Seconds())
	s.log.Info("scan complete",
		logger.Int("entries", len(entries)),
		logger.Duration("took", time.Since(start)))
	return watchlist, nil
}

func (s *WatchlistScanner) filterUniverse(universe []models.Asset) []models.Asset {
	blacklisted := make(map[string]bool, len(s.cfg.Blacklist))
	for _, sym := range s.cfg.Blacklist {
		blacklisted[sym] = true
	}

	out := make([]models.Asset, 0, len(universe))
	for _, a := range universe {
		if blacklisted[a.Symbol] {
			continue
		}
		if a.QuoteVolume24 < s.cfg.MinQuoteVolume {
			continue
		}
		if s.cfg.MinOpenInterest > 0 && a.OpenInterest < s.cfg.MinOpenInterest {
			continue
		}
		out = append(out, a)
	}
	return out
}

func groupBySector(assets []models.Asset) map[string][]models.Asset {
	out := make(map[string][]models.Asset)
	for _, a := range assets {
		sector := a.Sector
		if sector == "" {
			sector = "other"
		}
		out[sector] = append(out[sector], a)
	}
	return out
}

type candidate struct {
	pair   models.Pair
	sector string
}

// candidatePairs generates all same-sector combinations, plus a bounded
// cross-sector set built from the top-K most liquid assets of each sector
// so the combinatorics stay tractable.
func (s *WatchlistScanner) candidatePairs(bySector map[string][]models.Asset) []candidate {
	var out []candidate
	seen := make(map[string]bool)

	add := func(a1, a2 models.Asset, sector string) {
		p := models.Pair{Symbol1: a1.Symbol, Symbol2: a2.Symbol}
		if seen[p.String()] {
			return
		}
		seen[p.String()] = true
		out = append(out, candidate{pair: p, sector: sector})
	}

	sectors := make([]string, 0, len(bySector))
	for sector := range bySector {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	for _, sector := range sectors {
		assets := bySector[sector]
		for i := 0; i < len(assets); i++ {
			for j := i + 1; j < len(assets); j++ {
				add(assets[i], assets[j], sector)
			}
		}
	}

	if s.cfg.CrossSectorTopK > 0 {
		var pool []models.Asset
		for _, sector := range sectors {
			assets := append([]models.Asset(nil), bySector[sector]...)
			sort.Slice(assets, func(i, j int) bool {
				return assets[i].QuoteVolume24 > assets[j].QuoteVolume24
			})
			if len(assets) > s.cfg.CrossSectorTopK {
				assets = assets[:s.cfg.CrossSectorTopK]
			}
			pool = append(pool, assets...)
		}
		for i := 0; i < len(pool); i++ {
			for j := i + 1; j < len(pool); j++ {
				if pool[i].Sector == pool[j].Sector {
					continue
				}
				add(pool[i], pool[j], "cross")
			}
		}
	}

	return out
}

// fetchSeries pulls the common lookback window for every symbol appearing
// in any candidate, with bounded concurrency. Failed symbols are simply
// absent from the result; their pairs fall out as InsufficientData.
func (s *WatchlistScanner) fetchSeries(ctx context.Context, candidates []candidate) map[string]models.PriceSeries {
	symbols := make(map[string]bool)
	for _, c := range candidates {
		symbols[c.pair.Symbol1] = true
		symbols[c.pair.Symbol2] = true
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, s.cfg.FetchConcurrency)
		series = make(map[string]models.PriceSeries, len(symbols))
	)

	for sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			ps, err := s.source.GetDailyCloses(ctx, sym, s.cfg.LookbackDays)
			if err != nil {
				s.metrics.RecordError("price_fetch")
				s.log.Warn("price fetch failed", logger.String("symbol", sym), logger.Error(err))
				return
			}
			mu.Lock()
			series[sym] = ps
			mu.Unlock()
		}(sym)
	}
	wg.Wait()

	return series
}

func (s *WatchlistScanner) evaluateCandidates(ctx context.Context, candidates []candidate, series map[string]models.PriceSeries) []models.WatchlistEntry {
	var entries []models.WatchlistEntry

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		s1, ok1 := series[c.pair.Symbol1]
		s2, ok2 := series[c.pair.Symbol2]
		if !ok1 || !ok2 {
			s.metrics.RecordPairEvaluated("no_data")
			continue
		}

		aligned, err := models.AlignPair(s1, s2)
		if err != nil {
			s.recordRejection(c.pair, err)
			continue
		}
		result, err := s.eval.Evaluate(aligned, time.Time{})
		if err != nil {
			s.recordRejection(c.pair, err)
			continue
		}

		verdict := result.Verdict
		if verdict.Correlation < s.cfg.MinCorrelation ||
			!verdict.IsCointegrated ||
			!verdict.HalfLife.AtMost(s.cfg.MaxHalfLifeDays) {
			s.metrics.RecordPairEvaluated("filtered")
			continue
		}

		entries = append(entries, models.WatchlistEntry{
			Pair:              c.pair,
			Sector:            c.sector,
			Verdict:           verdict,
			EntryThreshold:    result.Profile.OptimalEntryThreshold,
			ReversionRate:     result.Profile.ReversionRateAt(result.Profile.OptimalEntryThreshold),
			MaxHistoricalAbsZ: result.Profile.MaxHistoricalAbsZ,
			QualityScore:      qualityScore(verdict),
			SignalStrength:    signalStrength(verdict.CurrentZScore, result.Profile.OptimalEntryThreshold),
		})
		s.metrics.RecordPairEvaluated("accepted")
	}

	return entries
}

// recordRejection distinguishes expected statistical rejections from
// genuine failures in both logs and metrics.
func (s *WatchlistScanner) recordRejection(pair models.Pair, err error) {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		s.metrics.RecordPairEvaluated("insufficient_data")
	case errors.Is(err, models.ErrDegenerateSpread):
		s.metrics.RecordPairEvaluated("degenerate_spread")
	default:
		s.metrics.RecordPairEvaluated("error")
		s.metrics.RecordError("evaluate")
		s.log.Warn("pair evaluation failed", logger.String("pair", pair.String()), logger.Error(err))
		return
	}
	s.log.Debug("pair rejected", logger.String("pair", pair.String()), logger.Error(err))
}

// rankPerSector sorts by quality score and keeps the top N per sector.
func (s *WatchlistScanner) rankPerSector(entries []models.WatchlistEntry) []models.WatchlistEntry {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].QualityScore > entries[j].QualityScore
	})

	kept := make([]models.WatchlistEntry, 0, len(entries))
	perSector := make(map[string]int)
	for _, e := range entries {
		if perSector[e.Sector] >= s.cfg.TopPerSector {
			continue
		}
		perSector[e.Sector]++
		kept = append(kept, e)
	}
	return kept
}

// qualityScore = correlation * (1/max(halfLife, eps)) * meanReversionRate * 100.
func qualityScore(v models.FitnessVerdict) float64 {
	const eps = 1e-9
	if v.HalfLife.Infinite {
		return 0
	}
	return v.Correlation * (1 / math.Max(v.HalfLife.Days, eps)) * v.MeanReversionRate * 100
}

// signalStrength = min(|z|/entryThreshold, 1).
func signalStrength(z, entry float64) float64 {
	if entry <= 0 {
		return 0
	}
	return math.Min(math.Abs(z)/entry, 1)
}
