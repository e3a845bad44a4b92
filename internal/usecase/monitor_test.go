package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"PairPull/internal/domain/models"
	"PairPull/pkg/logger"
)

var monitorStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// divergedLegs builds a pair whose hedged spread is small deterministic
// noise; with jump set, the last close of the first leg is pushed far above
// the relationship, which sends the rolling z-score well past any entry
// threshold.
func divergedLegs(n int, jump bool) (closes1, closes2 []float64) {
	closes1 = make([]float64, n)
	closes2 = make([]float64, n)
	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		fi := float64(i)
		w := 0.02*math.Sin(0.63*fi) + 0.0005*fi
		spread[i] = 0.05*math.Sin(1.7*fi) + 0.025*math.Cos(0.9*fi)
		closes2[i] = 100 * math.Exp(w)
		closes1[i] = closes2[i] * math.Exp(spread[i])
	}
	if jump {
		closes1[n-1] = closes2[n-1] * math.Exp(spread[n-1]+1.0)
	}
	return closes1, closes2
}

// convergedLegs extends the diverged series by one day whose spread sits at
// the trailing-window mean, so the z-score lands near zero.
func convergedLegs(n int) (closes1, closes2 []float64) {
	closes1, closes2 = divergedLegs(n, false)

	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		fi := float64(i)
		spread[i] = 0.05*math.Sin(1.7*fi) + 0.025*math.Cos(0.9*fi)
	}
	var mean float64
	for _, s := range spread[n-30:] {
		mean += s
	}
	mean /= 30

	fn := float64(n)
	w := 0.02*math.Sin(0.63*fn) + 0.0005*fn
	c2 := 100 * math.Exp(w)
	closes2 = append(closes2, c2)
	closes1 = append(closes1, c2*math.Exp(mean))
	return closes1, closes2
}

func newTestMonitor(source *fakeSource) (*TradeMonitor, *memState, *memHistory, *captureEvents, *captureNotifier) {
	state := &memState{}
	hist := &memHistory{}
	events := &captureEvents{}
	notes := &captureNotifier{}
	book := NewTradeBook(5)
	eval := NewPairEvaluator(30, nil, 0)
	mon := NewTradeMonitor(source, state, hist, events, notes, nopMetrics{}, eval, book,
		logger.Nop(), MonitorConfig{ExitThreshold: 0.5, LookbackDays: 90})
	return mon, state, hist, events, notes
}

func TestMonitorFullLifecycle(t *testing.T) {
	ctx := context.Background()
	pair := testPair()

	source := newFakeSource()
	c1, c2 := divergedLegs(120, true)
	source.set(pair.Symbol1, dailySeries(monitorStart, c1))
	source.set(pair.Symbol2, dailySeries(monitorStart, c2))

	mon, state, hist, events, notes := newTestMonitor(source)
	if err := state.ReplaceWatchlist(ctx, models.Watchlist{
		Entries: []models.WatchlistEntry{{Pair: pair}},
	}); err != nil {
		t.Fatal(err)
	}

	// Cycle 1: the blown-out spread triggers an entry.
	if err := mon.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	live, _ := state.LiveTrades(ctx)
	if len(live.Trades) != 1 {
		t.Fatalf("live trades = %d, want 1", len(live.Trades))
	}
	trade := live.Trades[pair.String()]
	if trade.Direction != models.DirectionShort {
		t.Fatalf("direction = %s, want short (first leg blew out upward)", trade.Direction)
	}
	if len(events.entries) != 1 {
		t.Fatalf("entry events = %d, want 1", len(events.entries))
	}
	if len(notes.msgs) != 1 || !strings.HasPrefix(notes.msgs[0], "ENTRY") {
		t.Fatalf("notifications = %v, want one ENTRY", notes.msgs)
	}

	// Cycle 2 on a converged series: z back inside the exit band, trade
	// closes, and shorting the blown-out leg was profitable.
	c1, c2 = convergedLegs(120)
	source.set(pair.Symbol1, dailySeries(monitorStart, c1))
	source.set(pair.Symbol2, dailySeries(monitorStart, c2))

	if err := mon.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	live, _ = state.LiveTrades(ctx)
	if len(live.Trades) != 0 {
		t.Fatalf("live trades = %d after exit, want 0", len(live.Trades))
	}
	if len(hist.recs) != 1 {
		t.Fatalf("history records = %d, want 1", len(hist.recs))
	}
	rec := hist.recs[0]
	if rec.ExitReason != "z_score" {
		t.Fatalf("exit reason = %q, want z_score", rec.ExitReason)
	}
	if rec.TotalPnLPct <= 0 {
		t.Fatalf("pnl = %v, want > 0", rec.TotalPnLPct)
	}
	if len(events.exits) != 1 {
		t.Fatalf("exit events = %d, want 1", len(events.exits))
	}
}

func TestMonitorHydrateResumesTrade(t *testing.T) {
	ctx := context.Background()
	pair := testPair()

	source := newFakeSource()
	c1, c2 := convergedLegs(120)
	source.set(pair.Symbol1, dailySeries(monitorStart, c1))
	source.set(pair.Symbol2, dailySeries(monitorStart, c2))

	mon, state, hist, _, _ := newTestMonitor(source)
	seed := models.Trade{
		ID: "resume-1", Pair: pair,
		Direction:   models.DirectionShort,
		EntryTime:   monitorStart.AddDate(0, 0, 100),
		EntryPrice1: 250, EntryPrice2: 100,
		LongSymbol: pair.Symbol2, LongWeight: 0.5,
		ShortSymbol: pair.Symbol1, ShortWeight: 0.5,
		ExitThreshold: 0.5,
	}
	if err := state.ReplaceLiveTrades(ctx, models.LiveTradeSet{
		Trades: map[string]models.Trade{pair.String(): seed},
	}); err != nil {
		t.Fatal(err)
	}
	if err := state.ReplaceWatchlist(ctx, models.Watchlist{}); err != nil {
		t.Fatal(err)
	}

	if err := mon.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}

	// The pair is off the watchlist, but the hydrated trade is still
	// monitored and exits on the converged series.
	if err := mon.RunCycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(hist.recs) != 1 {
		t.Fatalf("history records = %d, want 1", len(hist.recs))
	}
	if hist.recs[0].ID != "resume-1" {
		t.Fatalf("closed trade id = %q, want resume-1", hist.recs[0].ID)
	}
}

func TestMonitorManualEntryAndExit(t *testing.T) {
	ctx := context.Background()
	pair := testPair()

	source := newFakeSource()
	c1, c2 := convergedLegs(120)
	source.set(pair.Symbol1, dailySeries(monitorStart, c1))
	source.set(pair.Symbol2, dailySeries(monitorStart, c2))

	mon, state, hist, _, _ := newTestMonitor(source)

	// Manual entry works even with z near zero.
	trade, err := mon.EnterPair(ctx, pair)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if !trade.Manual {
		t.Fatal("trade not flagged manual")
	}
	live, _ := state.LiveTrades(ctx)
	if len(live.Trades) != 1 {
		t.Fatalf("live trades = %d, want 1", len(live.Trades))
	}

	// Double entry is rejected by the book.
	if _, err := mon.EnterPair(ctx, pair); err != models.ErrDuplicateTradeAttempt {
		t.Fatalf("second enter: got %v, want ErrDuplicateTradeAttempt", err)
	}

	rec, err := mon.ExitPair(ctx, pair)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rec.ExitReason != "manual" {
		t.Fatalf("exit reason = %q, want manual", rec.ExitReason)
	}
	live, _ = state.LiveTrades(ctx)
	if len(live.Trades) != 0 {
		t.Fatalf("live trades = %d after exit, want 0", len(live.Trades))
	}
	if len(hist.recs) != 1 {
		t.Fatalf("history records = %d, want 1", len(hist.recs))
	}

	// Exiting again fails: nothing live.
	if _, err := mon.ExitPair(ctx, pair); !errors.Is(err, models.ErrTradeNotFound) {
		t.Fatalf("second exit: got %v, want ErrTradeNotFound", err)
	}
}
