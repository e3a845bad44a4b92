package usecase

import (
	"math"
	"sync"
	"testing"
	"time"

	"PairPull/internal/domain/models"
)

func testPair() models.Pair {
	return models.Pair{Symbol1: "BTCUSDT", Symbol2: "ETHUSDT"}
}

func stepInput(z, beta, p1, p2, entry float64) StepInput {
	return StepInput{
		Verdict: models.FitnessVerdict{
			Pair:          testPair(),
			CurrentZScore: z,
			Beta:          beta,
		},
		Profile: models.DivergenceProfile{
			Pair:                  testPair(),
			OptimalEntryThreshold: entry,
		},
		Price1: p1,
		Price2: p2,
		Now:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTradeBookExclusivity(t *testing.T) {
	book := NewTradeBook(10)
	trade := models.Trade{ID: "a", Pair: testPair()}

	if err := book.Admit(trade); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	err := book.Admit(models.Trade{ID: "b", Pair: testPair()})
	if err != models.ErrDuplicateTradeAttempt {
		t.Fatalf("second admit: got %v, want ErrDuplicateTradeAttempt", err)
	}
	if book.Count() != 1 {
		t.Fatalf("count = %d, want 1", book.Count())
	}
}

func TestTradeBookCap(t *testing.T) {
	book := NewTradeBook(1)
	if err := book.Admit(models.Trade{ID: "a", Pair: testPair()}); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	other := models.Pair{Symbol1: "SOLUSDT", Symbol2: "AVAXUSDT"}
	err := book.Admit(models.Trade{ID: "b", Pair: other})
	if err != models.ErrConcurrencyCapExceeded {
		t.Fatalf("over-cap admit: got %v, want ErrConcurrencyCapExceeded", err)
	}
	if book.Count() != 1 {
		t.Fatalf("count = %d, want 1", book.Count())
	}
}

// Many goroutines racing on the same pair: exactly one wins, and with a cap
// of 1 the book never holds more than one trade no matter the interleaving.
func TestTradeBookConcurrentAdmit(t *testing.T) {
	book := NewTradeBook(1)
	pairs := []models.Pair{
		testPair(),
		{Symbol1: "SOLUSDT", Symbol2: "AVAXUSDT"},
		{Symbol1: "DOGEUSDT", Symbol2: "SHIBUSDT"},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trade := models.Trade{ID: string(rune('a' + i)), Pair: pairs[i%len(pairs)]}
			if err := book.Admit(trade); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("admitted = %d, want 1", admitted)
	}
	if book.Count() != 1 {
		t.Fatalf("count = %d, want 1", book.Count())
	}
}

func TestStateMachineHoldsBelowThreshold(t *testing.T) {
	book := NewTradeBook(5)
	sm := NewPairStateMachine(testPair(), book, 0.5)

	tr := sm.Step(stepInput(1.2, 1.0, 100, 50, 2.0))
	if tr.Changed() {
		t.Fatalf("transition %s -> %s, want no change", tr.From, tr.To)
	}
	if sm.State() != models.StateWatching {
		t.Fatalf("state = %s, want WATCHING", sm.State())
	}
}

func TestStateMachineEntryAndExit(t *testing.T) {
	book := NewTradeBook(5)
	sm := NewPairStateMachine(testPair(), book, 0.5)

	// z beyond the entry threshold, positive: short symbol1, long symbol2.
	tr := sm.Step(stepInput(2.4, 1.5, 100, 50, 2.0))
	if tr.To != models.StateInTrade || tr.Trade == nil {
		t.Fatalf("entry transition: to=%s trade=%v", tr.To, tr.Trade)
	}
	trade := *tr.Trade
	if trade.Direction != models.DirectionShort {
		t.Fatalf("direction = %s, want short", trade.Direction)
	}
	if trade.LongSymbol != "ETHUSDT" || trade.ShortSymbol != "BTCUSDT" {
		t.Fatalf("legs = long %s / short %s", trade.LongSymbol, trade.ShortSymbol)
	}

	// Beta-neutral weights for |beta| = 1.5.
	wantW1, wantW2 := 1/2.5, 1.5/2.5
	if math.Abs(trade.ShortWeight-wantW1) > 1e-12 || math.Abs(trade.LongWeight-wantW2) > 1e-12 {
		t.Fatalf("weights short=%v long=%v, want %v / %v",
			trade.ShortWeight, trade.LongWeight, wantW1, wantW2)
	}

	// Still in trade while |z| above the exit threshold.
	tr = sm.Step(stepInput(1.0, 1.5, 98, 50, 2.0))
	if tr.Changed() {
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	}

	// z reverts inside the exit band: close. The shorted leg fell from 100
	// to 90 so the trade must be profitable.
	tr = sm.Step(stepInput(0.3, 1.5, 90, 50, 2.0))
	if tr.To != models.StateClosed || tr.Record == nil {
		t.Fatalf("exit transition: to=%s record=%v", tr.To, tr.Record)
	}
	rec := *tr.Record
	if rec.ExitReason != "z_score" {
		t.Fatalf("exit reason = %q, want z_score", rec.ExitReason)
	}
	if rec.TotalPnLPct <= 0 {
		t.Fatalf("pnl = %v, want > 0", rec.TotalPnLPct)
	}
	if book.Count() != 0 {
		t.Fatalf("book count = %d after close, want 0", book.Count())
	}
}

func TestStateMachineNegativeZGoesLong(t *testing.T) {
	book := NewTradeBook(5)
	sm := NewPairStateMachine(testPair(), book, 0.5)

	tr := sm.Step(stepInput(-2.1, 0.8, 100, 50, 2.0))
	if tr.Trade == nil {
		t.Fatal("expected entry")
	}
	if tr.Trade.Direction != models.DirectionLong {
		t.Fatalf("direction = %s, want long", tr.Trade.Direction)
	}
	if tr.Trade.LongSymbol != "BTCUSDT" {
		t.Fatalf("long symbol = %s, want BTCUSDT", tr.Trade.LongSymbol)
	}
}

func TestStateMachineDropsOnCap(t *testing.T) {
	book := NewTradeBook(1)
	other := models.Pair{Symbol1: "SOLUSDT", Symbol2: "AVAXUSDT"}
	if err := book.Admit(models.Trade{ID: "x", Pair: other}); err != nil {
		t.Fatalf("seed admit: %v", err)
	}

	sm := NewPairStateMachine(testPair(), book, 0.5)
	tr := sm.Step(stepInput(2.5, 1.0, 100, 50, 2.0))
	if tr.DropReason != "cap" {
		t.Fatalf("drop reason = %q, want cap", tr.DropReason)
	}
	if sm.State() != models.StateWatching {
		t.Fatalf("state = %s, want WATCHING after drop", sm.State())
	}
	if book.Count() != 1 {
		t.Fatalf("count = %d, want 1", book.Count())
	}

	// Cap freed up: the same machine enters on the next signal.
	book.Remove(other)
	tr = sm.Step(stepInput(2.5, 1.0, 100, 50, 2.0))
	if tr.To != models.StateInTrade {
		t.Fatalf("to = %s, want IN_TRADE", tr.To)
	}
}

func TestStateMachineDropsOnDuplicate(t *testing.T) {
	book := NewTradeBook(5)
	if err := book.Admit(models.Trade{ID: "x", Pair: testPair()}); err != nil {
		t.Fatalf("seed admit: %v", err)
	}

	sm := NewPairStateMachine(testPair(), book, 0.5)
	tr := sm.Step(stepInput(2.5, 1.0, 100, 50, 2.0))
	if tr.DropReason != "duplicate" {
		t.Fatalf("drop reason = %q, want duplicate", tr.DropReason)
	}
}

func TestStateMachineConvergesWhenTradeRemovedExternally(t *testing.T) {
	book := NewTradeBook(5)
	sm := NewPairStateMachine(testPair(), book, 0.5)
	if tr := sm.Step(stepInput(2.5, 1.0, 100, 50, 2.0)); tr.Trade == nil {
		t.Fatal("expected entry")
	}

	// Manual exit removes the trade behind the machine's back.
	book.Remove(testPair())
	tr := sm.Step(stepInput(2.0, 1.0, 100, 50, 2.0))
	if tr.To != models.StateClosed {
		t.Fatalf("to = %s, want CLOSED", tr.To)
	}
	if tr.Record != nil {
		t.Fatal("no record expected for externally closed trade")
	}
}

func TestStateMachineExtraExitRule(t *testing.T) {
	book := NewTradeBook(5)
	stop := TakeProfitStopLoss{TakeProfitPct: 100, StopLossPct: 1}
	sm := NewPairStateMachine(testPair(), book, 0.5, stop)

	if tr := sm.Step(stepInput(2.5, 1.0, 100, 50, 2.0)); tr.Trade == nil {
		t.Fatal("expected entry")
	}
	// z still wide but the short leg ran against us hard: stop loss fires.
	tr := sm.Step(stepInput(2.6, 1.0, 130, 50, 2.0))
	if tr.To != models.StateClosed || tr.Record == nil {
		t.Fatalf("to=%s record=%v, want CLOSED with record", tr.To, tr.Record)
	}
	if tr.Record.ExitReason != stop.Name() {
		t.Fatalf("exit reason = %q, want %q", tr.Record.ExitReason, stop.Name())
	}
	if tr.Record.TotalPnLPct >= 0 {
		t.Fatalf("pnl = %v, want < 0 on stop loss", tr.Record.TotalPnLPct)
	}
}

func TestPnLSymmetry(t *testing.T) {
	in := stepInput(-2.0, 1.0, 100, 50, 1.5)
	trade := buildTrade(testPair(), in, 0.5, false)

	// Long leg up 10%, short leg flat: effectual pnl = 10% * long weight.
	pnl := realizedPnLPct(trade, 110, 50)
	want := 10.0 * trade.LongWeight
	if math.Abs(pnl-want) > 1e-9 {
		t.Fatalf("pnl = %v, want %v", pnl, want)
	}

	// Both legs up 10%: beta-neutral with equal weights nets to zero.
	pnl = realizedPnLPct(trade, 110, 55)
	if math.Abs(pnl) > 1e-9 {
		t.Fatalf("pnl = %v, want 0 for symmetric move", pnl)
	}
}
