package models

import "time"

// Asset is one tradeable symbol from the universe.
type Asset struct {
	Symbol        string  `json:"symbol"`
	Sector        string  `json:"sector"`
	QuoteVolume24 float64 `json:"quote_volume_24h"`
	OpenInterest  float64 `json:"open_interest"`
}

// WatchlistEntry is one scored candidate pair. Entries are rebuilt
// wholesale on each scan and never patched incrementally.
type WatchlistEntry struct {
	Pair   Pair   `json:"pair"`
	Sector string `json:"sector"`

	Verdict FitnessVerdict `json:"verdict"`

	// Divergence profile summary.
	EntryThreshold    float64 `json:"entry_threshold"`
	ReversionRate     float64 `json:"reversion_rate"`
	MaxHistoricalAbsZ float64 `json:"max_historical_abs_z"`

	QualityScore float64 `json:"quality_score"`

	// SignalStrength = min(|z| / entryThreshold, 1).
	SignalStrength float64 `json:"signal_strength"`
}

// Watchlist is the persisted "current watchlist" document. Writes replace
// the whole document (swap, not patch) so a scan can run concurrently with
// trade monitoring.
type Watchlist struct {
	Entries   []WatchlistEntry `json:"entries"`
	ScannedAt time.Time        `json:"scanned_at"`
	Version   int64            `json:"version"`
}

// Entry returns the entry for a pair, if present.
func (w Watchlist) Entry(p Pair) (WatchlistEntry, bool) {
	for _, e := range w.Entries {
		if e.Pair == p {
			return e, true
		}
	}
	return WatchlistEntry{}, false
}
