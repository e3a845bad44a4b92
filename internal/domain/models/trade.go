package models

import "time"

// Direction of a pair trade. Long means long Symbol1 / short Symbol2
// (the spread is below its mean and expected to recover); Short is the
// mirror image.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// TradeState is the lifecycle state of a monitored pair.
type TradeState string

const (
	StateWatching    TradeState = "WATCHING"
	StateEntrySignal TradeState = "ENTRY_SIGNAL"
	StateInTrade     TradeState = "IN_TRADE"
	StateExitSignal  TradeState = "EXIT_SIGNAL"
	StateClosed      TradeState = "CLOSED"
)

// Trade is a live position in one pair. Created on an entry transition and
// owned exclusively by the trade lifecycle until closed; at most one live
// Trade exists per pair at any time.
type Trade struct {
	ID   string `json:"id"`
	Pair Pair   `json:"pair"`

	Direction   Direction `json:"direction"`
	EntryTime   time.Time `json:"entry_time"`
	EntryZScore float64   `json:"entry_z_score"`
	EntryPrice1 float64   `json:"entry_price1"`
	EntryPrice2 float64   `json:"entry_price2"`
	Beta        float64   `json:"beta"`

	// Beta-neutral legs: weights sum to 1 and are assigned to the long and
	// short side according to Direction.
	LongSymbol  string  `json:"long_symbol"`
	ShortSymbol string  `json:"short_symbol"`
	LongWeight  float64 `json:"long_weight"`
	ShortWeight float64 `json:"short_weight"`

	EntryThreshold float64 `json:"entry_threshold"`
	ExitThreshold  float64 `json:"exit_threshold"`

	Manual bool `json:"manual,omitempty"`
}

// TradeHistoryRecord is a closed trade with exit fields and realized P&L.
// The live Trade it came from is discarded on close.
type TradeHistoryRecord struct {
	Trade

	ExitTime   time.Time `json:"exit_time"`
	ExitZScore float64   `json:"exit_z_score"`
	ExitPrice1 float64   `json:"exit_price1"`
	ExitPrice2 float64   `json:"exit_price2"`
	ExitReason string    `json:"exit_reason"`

	// Per-leg and total realized P&L, in percent of each leg's entry price
	// scaled by leg weight.
	LongPnLPct  float64 `json:"long_pnl_pct"`
	ShortPnLPct float64 `json:"short_pnl_pct"`
	TotalPnLPct float64 `json:"total_pnl_pct"`

	HoldingDays float64 `json:"holding_days"`
}

// LiveTradeSet is the persisted whole-document snapshot of all live trades,
// keyed by pair name. Replaced wholesale on every write.
type LiveTradeSet struct {
	Trades    map[string]Trade `json:"trades"`
	UpdatedAt time.Time        `json:"updated_at"`
	Version   int64            `json:"version"`
}
