package models

import (
	"fmt"
	"time"
)

// MinAlignedObservations is the smallest number of aligned closes a pair
// must have before any statistic is computed.
const MinAlignedObservations = 15

// PricePoint is one close observation for a symbol.
type PricePoint struct {
	Timestamp time.Time `json:"t"`
	Close     float64   `json:"c"`
}

// PriceSeries is an ordered (strictly increasing timestamps) close series
// for one symbol. Immutable once fetched.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Closes returns the close values in order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Before returns a copy of the series truncated to points at or before
// cutoff. A zero cutoff returns the series unchanged.
func (s PriceSeries) Before(cutoff time.Time) PriceSeries {
	if cutoff.IsZero() {
		return s
	}
	pts := make([]PricePoint, 0, len(s.Points))
	for _, p := range s.Points {
		if !p.Timestamp.After(cutoff) {
			pts = append(pts, p)
		}
	}
	return PriceSeries{Symbol: s.Symbol, Points: pts}
}

// Tick is a live last-price update from the exchange stream.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Pair identifies an ordered pair of symbols.
type Pair struct {
	Symbol1 string `json:"symbol1"`
	Symbol2 string `json:"symbol2"`
}

// String returns the canonical pair name, e.g. "BTCUSDT/ETHUSDT".
func (p Pair) String() string {
	return p.Symbol1 + "/" + p.Symbol2
}

// ParsePair parses "A/B" into a Pair.
func ParsePair(name string) (Pair, error) {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' && i > 0 && i < len(name)-1 {
			return Pair{Symbol1: name[:i], Symbol2: name[i+1:]}, nil
		}
	}
	return Pair{}, fmt.Errorf("invalid pair name %q, want SYMBOL1/SYMBOL2", name)
}

// PairSeries holds two price series aligned to a common, sorted set of
// timestamps (inner join). Alignment is done once at construction.
type PairSeries struct {
	Pair    Pair         `json:"pair"`
	Times   []time.Time  `json:"times"`
	Closes1 []float64    `json:"closes1"`
	Closes2 []float64    `json:"closes2"`
}

// Len returns the number of aligned observations.
func (ps PairSeries) Len() int { return len(ps.Times) }

// AlignPair inner-joins two price series on timestamp. Returns
// ErrInsufficientData when fewer than MinAlignedObservations rows survive
// the join.
func AlignPair(s1, s2 PriceSeries) (PairSeries, error) {
	byTime := make(map[int64]float64, len(s2.Points))
	for _, p := range s2.Points {
		byTime[p.Timestamp.Unix()] = p.Close
	}

	ps := PairSeries{Pair: Pair{Symbol1: s1.Symbol, Symbol2: s2.Symbol}}
	for _, p := range s1.Points {
		c2, ok := byTime[p.Timestamp.Unix()]
		if !ok {
			continue
		}
		ps.Times = append(ps.Times, p.Timestamp)
		ps.Closes1 = append(ps.Closes1, p.Close)
		ps.Closes2 = append(ps.Closes2, c2)
	}

	if ps.Len() < MinAlignedObservations {
		return PairSeries{}, fmt.Errorf("align %s: %d rows: %w",
			ps.Pair, ps.Len(), ErrInsufficientData)
	}
	return ps, nil
}

// Before truncates the aligned series to rows at or before cutoff and
// re-checks the minimum length. Data after the cutoff is excluded entirely.
func (ps PairSeries) Before(cutoff time.Time) (PairSeries, error) {
	if cutoff.IsZero() {
		return ps, nil
	}
	out := PairSeries{Pair: ps.Pair}
	for i, t := range ps.Times {
		if t.After(cutoff) {
			break
		}
		out.Times = append(out.Times, t)
		out.Closes1 = append(out.Closes1, ps.Closes1[i])
		out.Closes2 = append(out.Closes2, ps.Closes2[i])
	}
	if out.Len() < MinAlignedObservations {
		return PairSeries{}, fmt.Errorf("cutoff %s: %d rows: %w",
			ps.Pair, out.Len(), ErrInsufficientData)
	}
	return out, nil
}
