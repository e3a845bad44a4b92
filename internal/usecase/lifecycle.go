package usecase

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"PairPull/internal/domain/models"
)

// TradeBook is the single owner of the live-trade set. The exclusivity
// check, the concurrency-cap check, and trade creation happen under one
// lock so two concurrent cycles can neither double-enter a pair nor exceed
// the cap.
type TradeBook struct {
	mu      sync.Mutex
	cap     int
	live    map[string]models.Trade
	version int64
}

// NewTradeBook creates a book with the given global live-trade cap.
func NewTradeBook(capacity int) *TradeBook {
	if capacity < 1 {
		capacity = 1
	}
	return &TradeBook{cap: capacity, live: make(map[string]models.Trade)}
}

// Load hydrates the book from a persisted snapshot.
func (b *TradeBook) Load(set models.LiveTradeSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live = make(map[string]models.Trade, len(set.Trades))
	for k, t := range set.Trades {
		b.live[k] = t
	}
	b.version = set.Version
}

// Snapshot returns the whole-document form of the book for persistence.
func (b *TradeBook) Snapshot() models.LiveTradeSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := models.LiveTradeSet{
		Trades:    make(map[string]models.Trade, len(b.live)),
		UpdatedAt: time.Now().UTC(),
		Version:   b.version,
	}
	for k, t := range b.live {
		out.Trades[k] = t
	}
	return out
}

// Admit atomically checks pair exclusivity and the global cap, then records
// the trade. Returns ErrDuplicateTradeAttempt or ErrConcurrencyCapExceeded
// when the signal must be dropped (not queued).
func (b *TradeBook) Admit(t models.Trade) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := t.Pair.String()
	if _, ok := b.live[key]; ok {
		return models.ErrDuplicateTradeAttempt
	}
	if len(b.live) >= b.cap {
		return models.ErrConcurrencyCapExceeded
	}
	b.live[key] = t
	b.version++
	return nil
}

// Remove deletes the live trade for a pair, returning it.
func (b *TradeBook) Remove(p models.Pair) (models.Trade, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.live[p.String()]
	if ok {
		delete(b.live, p.String())
		b.version++
	}
	return t, ok
}

// Get returns the live trade for a pair, if any.
func (b *TradeBook) Get(p models.Pair) (models.Trade, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.live[p.String()]
	return t, ok
}

// Count returns the number of live trades.
func (b *TradeBook) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Transition is the outcome of one state-machine step.
type Transition struct {
	From models.TradeState
	To   models.TradeState

	// Trade is set on an entry transition, Record on a close.
	Trade  *models.Trade
	Record *models.TradeHistoryRecord

	// DropReason is set when an entry signal fired but was dropped
	// ("duplicate" or "cap"). Dropped signals are logged, never queued;
	// the pair is re-evaluated fresh next cycle.
	DropReason string

	// ExitRule names the rule that fired a close.
	ExitRule string
}

// Changed reports whether the step moved the machine.
func (tr Transition) Changed() bool { return tr.From != tr.To }

// StepInput is everything one polling cycle hands the state machine for
// one pair: a fresh verdict, a current divergence profile, and the latest
// leg prices.
type StepInput struct {
	Verdict models.FitnessVerdict
	Profile models.DivergenceProfile
	Price1  float64
	Price2  float64
	Spread  []float64
	Now     time.Time
}

// PairStateMachine drives one pair through
// WATCHING -> ENTRY_SIGNAL -> IN_TRADE -> EXIT_SIGNAL -> CLOSED.
// CLOSED is terminal; the monitor starts a fresh WATCHING machine for the
// same pair on the next cycle.
type PairStateMachine struct {
	pair  models.Pair
	state models.TradeState
	book  *TradeBook

	exitThreshold float64
	extraExits    []ExitRule
}

// NewPairStateMachine creates a machine in WATCHING. extraExits are
// optional guard predicates evaluated alongside the z-score exit.
func NewPairStateMachine(pair models.Pair, book *TradeBook, exitThreshold float64, extraExits ...ExitRule) *PairStateMachine {
	if exitThreshold <= 0 {
		exitThreshold = 0.5
	}
	return &PairStateMachine{
		pair:          pair,
		state:         models.StateWatching,
		book:          book,
		exitThreshold: exitThreshold,
		extraExits:    extraExits,
	}
}

// State returns the current lifecycle state.
func (m *PairStateMachine) State() models.TradeState { return m.state }

// Attach marks the machine as tracking an already-live trade (hydration
// after restart).
func (m *PairStateMachine) Attach() { m.state = models.StateInTrade }

// Step consumes one fresh evaluation and decides entry/exit/hold. It never
// errors: rejected signals surface as DropReason and are re-evaluated next
// cycle.
func (m *PairStateMachine) Step(in StepInput) Transition {
	tr := Transition{From: m.state, To: m.state}

	switch m.state {
	case models.StateWatching:
		entry := in.Profile.OptimalEntryThreshold
		if math.Abs(in.Verdict.CurrentZScore) < entry {
			return tr
		}
		tr.From = models.StateWatching
		m.state = models.StateEntrySignal
		fallthrough

	case models.StateEntrySignal:
		trade := buildTrade(m.pair, in, m.exitThreshold, false)
		if err := m.book.Admit(trade); err != nil {
			// Dropped, not queued: back to WATCHING for a fresh look next
			// cycle.
			m.state = models.StateWatching
			tr.To = models.StateWatching
			tr.DropReason = dropReason(err)
			return tr
		}
		m.state = models.StateInTrade
		tr.To = models.StateInTrade
		tr.Trade = &trade
		return tr

	case models.StateInTrade:
		trade, ok := m.book.Get(m.pair)
		if !ok {
			// Closed out-of-band (manual exit); converge.
			m.state = models.StateClosed
			tr.To = models.StateClosed
			return tr
		}
		rule, exit := m.shouldExit(trade, in)
		if !exit {
			return tr
		}
		tr.ExitRule = rule
		m.state = models.StateExitSignal
		tr.To = models.StateExitSignal
		fallthrough

	case models.StateExitSignal:
		trade, ok := m.book.Remove(m.pair)
		if !ok {
			m.state = models.StateClosed
			tr.To = models.StateClosed
			return tr
		}
		rec := closeTrade(trade, in, tr.ExitRule)
		if rec.ExitReason == "" {
			rule, _ := m.shouldExit(trade, in)
			rec.ExitReason = rule
		}
		m.state = models.StateClosed
		tr.To = models.StateClosed
		tr.Record = &rec
		tr.ExitRule = rec.ExitReason
		return tr

	default: // CLOSED
		return tr
	}
}

func (m *PairStateMachine) shouldExit(trade models.Trade, in StepInput) (string, bool) {
	ectx := ExitContext{
		Trade:            trade,
		Verdict:          in.Verdict,
		Price1:           in.Price1,
		Price2:           in.Price2,
		Spread:           in.Spread,
		Now:              in.Now,
		UnrealizedPnLPct: realizedPnLPct(trade, in.Price1, in.Price2),
	}
	if math.Abs(in.Verdict.CurrentZScore) <= trade.ExitThreshold {
		return "z_score", true
	}
	for _, rule := range m.extraExits {
		if rule.ShouldExit(ectx) {
			return rule.Name(), true
		}
	}
	return "", false
}

// buildTrade constructs a beta-neutral position from the current verdict.
// Direction is long (long asset1 / short asset2) when z < 0: always bet
// that the cheap leg relative to the model recovers.
func buildTrade(pair models.Pair, in StepInput, exitThreshold float64, manual bool) models.Trade {
	absBeta := math.Abs(in.Verdict.Beta)
	w1 := 1 / (1 + absBeta)
	w2 := absBeta / (1 + absBeta)

	t := models.Trade{
		ID:             uuid.NewString(),
		Pair:           pair,
		EntryTime:      in.Now,
		EntryZScore:    in.Verdict.CurrentZScore,
		EntryPrice1:    in.Price1,
		EntryPrice2:    in.Price2,
		Beta:           in.Verdict.Beta,
		EntryThreshold: in.Profile.OptimalEntryThreshold,
		ExitThreshold:  exitThreshold,
		Manual:         manual,
	}

	if in.Verdict.CurrentZScore < 0 {
		t.Direction = models.DirectionLong
		t.LongSymbol, t.LongWeight = pair.Symbol1, w1
		t.ShortSymbol, t.ShortWeight = pair.Symbol2, w2
	} else {
		t.Direction = models.DirectionShort
		t.LongSymbol, t.LongWeight = pair.Symbol2, w2
		t.ShortSymbol, t.ShortWeight = pair.Symbol1, w1
	}
	return t
}

// closeTrade converts a live trade into a history record at the current
// prices and z-score.
func closeTrade(t models.Trade, in StepInput, reason string) models.TradeHistoryRecord {
	longEntry, shortEntry := legEntryPrices(t)
	longExit, shortExit := legPrices(t, in.Price1, in.Price2)

	longPnL := (longExit - longEntry) / longEntry * t.LongWeight
	shortPnL := -(shortExit - shortEntry) / shortEntry * t.ShortWeight

	rec := models.TradeHistoryRecord{
		Trade:       t,
		ExitTime:    in.Now,
		ExitZScore:  in.Verdict.CurrentZScore,
		ExitPrice1:  in.Price1,
		ExitPrice2:  in.Price2,
		ExitReason:  reason,
		LongPnLPct:  longPnL * 100,
		ShortPnLPct: shortPnL * 100,
		TotalPnLPct: (longPnL + shortPnL) * 100,
		HoldingDays: in.Now.Sub(t.EntryTime).Hours() / 24,
	}
	return rec
}

// realizedPnLPct is the mark-to-market P&L of a live trade, in percent.
func realizedPnLPct(t models.Trade, price1, price2 float64) float64 {
	longEntry, shortEntry := legEntryPrices(t)
	if longEntry == 0 || shortEntry == 0 {
		return 0
	}
	longExit, shortExit := legPrices(t, price1, price2)
	longPnL := (longExit - longEntry) / longEntry * t.LongWeight
	shortPnL := -(shortExit - shortEntry) / shortEntry * t.ShortWeight
	return (longPnL + shortPnL) * 100
}

func legEntryPrices(t models.Trade) (longEntry, shortEntry float64) {
	if t.LongSymbol == t.Pair.Symbol1 {
		return t.EntryPrice1, t.EntryPrice2
	}
	return t.EntryPrice2, t.EntryPrice1
}

func legPrices(t models.Trade, price1, price2 float64) (longPrice, shortPrice float64) {
	if t.LongSymbol == t.Pair.Symbol1 {
		return price1, price2
	}
	return price2, price1
}

func dropReason(err error) string {
	switch err {
	case models.ErrDuplicateTradeAttempt:
		return "duplicate"
	case models.ErrConcurrencyCapExceeded:
		return "cap"
	default:
		return "unknown"
	}
}
