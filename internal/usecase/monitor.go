package usecase

import (
	"context"
	"fmt"
	"time"

	"PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	"PairPull/pkg/logger"
)

// MonitorConfig holds the signal-loop knobs.
type MonitorConfig struct {
	ExitThreshold float64
	LookbackDays  int
}

// TradeMonitor polls every watchlist pair, re-evaluates it, and drives its
// lifecycle state machine. All mutation of the live-trade set goes through
// the shared TradeBook; the monitor persists the resulting snapshot and
// archives closed trades.
type TradeMonitor struct {
	source   drepo.PriceSource
	store    drepo.StateStore
	history  drepo.HistoryStore
	events   drepo.EventPublisher
	notifier drepo.Notifier
	metrics  drepo.Metrics
	eval     *PairEvaluator
	book     *TradeBook
	log      *logger.Logger
	cfg      MonitorConfig

	extraExits []ExitRule

	// machines is touched only from RunCycle and the manual entry/exit
	// paths, which the caller serializes; TradeBook handles the state that
	// actually needs concurrency protection.
	machines map[string]*PairStateMachine

	// profiles caches the last divergence profile per pair so a stale one
	// is detected and recomputed rather than silently reused.
	profiles map[string]models.DivergenceProfile
}

func NewTradeMonitor(
	source drepo.PriceSource,
	store drepo.StateStore,
	history drepo.HistoryStore,
	events drepo.EventPublisher,
	notifier drepo.Notifier,
	metrics drepo.Metrics,
	eval *PairEvaluator,
	book *TradeBook,
	log *logger.Logger,
	cfg MonitorConfig,
	extraExits ...ExitRule,
) *TradeMonitor {
	if cfg.ExitThreshold <= 0 {
		cfg.ExitThreshold = 0.5
	}
	if cfg.LookbackDays < models.MinAlignedObservations {
		cfg.LookbackDays = 90
	}
	return &TradeMonitor{
		source: source, store: store, history: history,
		events: events, notifier: notifier, metrics: metrics,
		eval: eval, book: book, log: log, cfg: cfg,
		extraExits: extraExits,
		machines:   make(map[string]*PairStateMachine),
		profiles:   make(map[string]models.DivergenceProfile),
	}
}

// Hydrate loads the persisted live-trade set into the book and attaches
// an IN_TRADE machine for each trade, so a restart resumes monitoring
// open positions without re-entering them.
func (m *TradeMonitor) Hydrate(ctx context.Context) error {
	set, err := m.store.LiveTrades(ctx)
	if err != nil {
		return fmt.Errorf("load live trades: %w", err)
	}
	m.book.Load(set)
	for key, t := range set.Trades {
		sm := NewPairStateMachine(t.Pair, m.book, t.ExitThreshold, m.extraExits...)
		sm.Attach()
		m.machines[key] = sm
	}
	m.metrics.RecordLiveTrades(m.book.Count())
	m.log.Info("live trades hydrated", logger.Int("count", len(set.Trades)))
	return nil
}

// RunCycle performs one polling pass over the current watchlist plus any
// live pairs no longer on it. A failure on one pair is logged and skipped;
// it never aborts the cycle.
func (m *TradeMonitor) RunCycle(ctx context.Context) error {
	start := time.Now()

	watchlist, err := m.store.Watchlist(ctx)
	if err != nil {
		m.metrics.RecordError("watchlist_read")
		return fmt.Errorf("load watchlist: %w", err)
	}

	pairs := m.cyclePairs(watchlist)
	for _, pair := range pairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.stepPair(ctx, pair); err != nil {
			m.metrics.RecordError("monitor_pair")
			m.log.Warn("pair cycle failed",
				logger.String("pair", pair.String()), logger.Error(err))
		}
	}

	m.metrics.RecordLiveTrades(m.book.Count())
	m.metrics.RecordCycleDuration("monitor", time.Since(start).Seconds())
	return nil
}

// cyclePairs is the watchlist union the live set: an open trade keeps
// being monitored even after its pair rotates off the watchlist.
func (m *TradeMonitor) cyclePairs(w models.Watchlist) []models.Pair {
	seen := make(map[string]bool)
	var out []models.Pair
	for _, e := range w.Entries {
		if !seen[e.Pair.String()] {
			seen[e.Pair.String()] = true
			out = append(out, e.Pair)
		}
	}
	for _, t := range m.book.Snapshot().Trades {
		if !seen[t.Pair.String()] {
			seen[t.Pair.String()] = true
			out = append(out, t.Pair)
		}
	}
	return out
}

func (m *TradeMonitor) stepPair(ctx context.Context, pair models.Pair) error {
	in, err := m.freshInput(ctx, pair)
	if err != nil {
		return err
	}

	key := pair.String()
	sm, ok := m.machines[key]
	if !ok || sm.State() == models.StateClosed {
		sm = NewPairStateMachine(pair, m.book, m.cfg.ExitThreshold, m.extraExits...)
		if _, live := m.book.Get(pair); live {
			sm.Attach()
		}
		m.machines[key] = sm
	}

	tr := sm.Step(in)
	m.metrics.RecordZScore(key, in.Verdict.CurrentZScore)
	m.metrics.RecordLastPrice(pair.Symbol1, in.Price1)
	m.metrics.RecordLastPrice(pair.Symbol2, in.Price2)

	return m.applyTransition(ctx, pair, tr, in)
}

// freshInput evaluates a pair from current market data, refreshing the
// cached divergence profile when the series window has moved past it.
func (m *TradeMonitor) freshInput(ctx context.Context, pair models.Pair) (StepInput, error) {
	s1, err := m.source.GetDailyCloses(ctx, pair.Symbol1, m.cfg.LookbackDays)
	if err != nil {
		return StepInput{}, fmt.Errorf("fetch %s: %w", pair.Symbol1, err)
	}
	s2, err := m.source.GetDailyCloses(ctx, pair.Symbol2, m.cfg.LookbackDays)
	if err != nil {
		return StepInput{}, fmt.Errorf("fetch %s: %w", pair.Symbol2, err)
	}
	aligned, err := models.AlignPair(s1, s2)
	if err != nil {
		return StepInput{}, err
	}
	result, err := m.eval.Evaluate(aligned, time.Time{})
	if err != nil {
		return StepInput{}, err
	}

	seriesEnd := aligned.Times[len(aligned.Times)-1]
	key := pair.String()
	profile, ok := m.profiles[key]
	if !ok || !profile.CurrentFor(seriesEnd) {
		if ok {
			m.log.Debug("divergence profile stale, recomputed",
				logger.String("pair", key),
				logger.Error(models.ErrStaleDivergenceProfile))
		}
		profile = result.Profile
		m.profiles[key] = profile
	}

	return StepInput{
		Verdict: result.Verdict,
		Profile: profile,
		Price1:  aligned.Closes1[len(aligned.Closes1)-1],
		Price2:  aligned.Closes2[len(aligned.Closes2)-1],
		Spread:  result.Spread,
		Now:     time.Now().UTC(),
	}, nil
}

func (m *TradeMonitor) applyTransition(ctx context.Context, pair models.Pair, tr Transition, in StepInput) error {
	if tr.DropReason != "" {
		m.metrics.RecordSignal("entry_dropped", tr.DropReason)
		m.log.Info("entry signal dropped",
			logger.String("pair", pair.String()),
			logger.String("reason", tr.DropReason),
			logger.Float64("z_score", in.Verdict.CurrentZScore))
		return nil
	}
	if !tr.Changed() {
		return nil
	}

	switch {
	case tr.Trade != nil:
		return m.onEntry(ctx, *tr.Trade)
	case tr.Record != nil:
		return m.onExit(ctx, *tr.Record)
	}
	return nil
}

func (m *TradeMonitor) onEntry(ctx context.Context, t models.Trade) error {
	m.metrics.RecordSignal("entry", string(t.Direction))
	if err := m.store.ReplaceLiveTrades(ctx, m.book.Snapshot()); err != nil {
		return fmt.Errorf("persist live trades: %w", err)
	}
	if m.events != nil {
		if err := m.events.PublishEntry(ctx, t); err != nil {
			m.log.Warn("entry publish failed", logger.Error(err))
		}
	}
	m.notify(ctx, fmt.Sprintf(
		"ENTRY %s %s | z=%.2f | long %s %.0f%% / short %s %.0f%%",
		t.Pair, t.Direction, t.EntryZScore,
		t.LongSymbol, t.LongWeight*100, t.ShortSymbol, t.ShortWeight*100))
	m.log.Info("trade opened",
		logger.String("pair", t.Pair.String()),
		logger.String("trade_id", t.ID),
		logger.String("direction", string(t.Direction)),
		logger.Float64("entry_z", t.EntryZScore))
	return nil
}

func (m *TradeMonitor) onExit(ctx context.Context, rec models.TradeHistoryRecord) error {
	m.metrics.RecordSignal("exit", rec.ExitReason)
	if err := m.store.ReplaceLiveTrades(ctx, m.book.Snapshot()); err != nil {
		return fmt.Errorf("persist live trades: %w", err)
	}
	if err := m.history.Append(ctx, rec); err != nil {
		// The trade is already closed in the live set; history is
		// append-only and a miss here is recoverable from logs.
		m.metrics.RecordError("history_append")
		m.log.Error("history append failed",
			logger.String("trade_id", rec.ID), logger.Error(err))
	}
	if m.events != nil {
		if err := m.events.PublishExit(ctx, rec); err != nil {
			m.log.Warn("exit publish failed", logger.Error(err))
		}
	}
	m.notify(ctx, fmt.Sprintf(
		"EXIT %s (%s) | z=%.2f | pnl=%.2f%% | held %.1fd",
		rec.Pair, rec.ExitReason, rec.ExitZScore, rec.TotalPnLPct, rec.HoldingDays))
	m.log.Info("trade closed",
		logger.String("pair", rec.Pair.String()),
		logger.String("trade_id", rec.ID),
		logger.String("reason", rec.ExitReason),
		logger.Float64("pnl_pct", rec.TotalPnLPct))
	return nil
}

func (m *TradeMonitor) notify(ctx context.Context, msg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, msg); err != nil {
		m.log.Warn("notification failed", logger.Error(err))
	}
}

// EnterPair opens a manual position at the current market state. The
// entry still goes through the book so exclusivity and the cap hold for
// manual trades too.
func (m *TradeMonitor) EnterPair(ctx context.Context, pair models.Pair) (models.Trade, error) {
	in, err := m.freshInput(ctx, pair)
	if err != nil {
		return models.Trade{}, err
	}

	trade := buildTrade(pair, in, m.cfg.ExitThreshold, true)
	if err := m.book.Admit(trade); err != nil {
		return models.Trade{}, err
	}

	sm := NewPairStateMachine(pair, m.book, m.cfg.ExitThreshold, m.extraExits...)
	sm.Attach()
	m.machines[pair.String()] = sm

	if err := m.onEntry(ctx, trade); err != nil {
		return models.Trade{}, err
	}
	m.metrics.RecordLiveTrades(m.book.Count())
	return trade, nil
}

// ExitPair closes a live position at the current market state, regardless
// of z-score. The record carries reason "manual".
func (m *TradeMonitor) ExitPair(ctx context.Context, pair models.Pair) (models.TradeHistoryRecord, error) {
	in, err := m.freshInput(ctx, pair)
	if err != nil {
		return models.TradeHistoryRecord{}, err
	}

	trade, ok := m.book.Remove(pair)
	if !ok {
		return models.TradeHistoryRecord{}, fmt.Errorf("%s: %w", pair, models.ErrTradeNotFound)
	}
	delete(m.machines, pair.String())

	rec := closeTrade(trade, in, "manual")
	if err := m.onExit(ctx, rec); err != nil {
		return models.TradeHistoryRecord{}, err
	}
	m.metrics.RecordLiveTrades(m.book.Count())
	return rec, nil
}
