package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PairPull/internal/domain/models"
)

// In-memory collaborators for the scanner and monitor tests.

type fakeSource struct {
	mu       sync.Mutex
	series   map[string]models.PriceSeries
	universe []models.Asset
}

func newFakeSource() *fakeSource {
	return &fakeSource{series: make(map[string]models.PriceSeries)}
}

func (f *fakeSource) set(symbol string, s models.PriceSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.Symbol = symbol
	f.series[symbol] = s
}

func (f *fakeSource) GetDailyCloses(_ context.Context, symbol string, _ int) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.series[symbol]
	if !ok {
		return models.PriceSeries{}, fmt.Errorf("no data for %s", symbol)
	}
	return s, nil
}

func (f *fakeSource) GetHourlyCloses(_ context.Context, symbol string, _, _ time.Time) (models.PriceSeries, error) {
	return f.GetDailyCloses(context.Background(), symbol, 0)
}

func (f *fakeSource) GetUniverse(context.Context) ([]models.Asset, error) {
	return f.universe, nil
}

type memState struct {
	mu        sync.Mutex
	watchlist models.Watchlist
	live      models.LiveTradeSet
}

func (m *memState) Watchlist(context.Context) (models.Watchlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchlist, nil
}

func (m *memState) ReplaceWatchlist(_ context.Context, w models.Watchlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchlist = w
	return nil
}

func (m *memState) LiveTrades(context.Context) (models.LiveTradeSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live.Trades == nil {
		return models.LiveTradeSet{Trades: map[string]models.Trade{}}, nil
	}
	return m.live, nil
}

func (m *memState) ReplaceLiveTrades(_ context.Context, s models.LiveTradeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = s
	return nil
}

type memHistory struct {
	mu   sync.Mutex
	recs []models.TradeHistoryRecord
}

func (m *memHistory) Init(context.Context) error { return nil }

func (m *memHistory) Append(_ context.Context, rec models.TradeHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memHistory) Query(_ context.Context, pair string, limit int) ([]models.TradeHistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TradeHistoryRecord
	for _, r := range m.recs {
		if pair != "" && r.Pair.String() != pair {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memHistory) Health(context.Context) error { return nil }
func (m *memHistory) Close() error                 { return nil }

type captureEvents struct {
	mu         sync.Mutex
	entries    []models.Trade
	exits      []models.TradeHistoryRecord
	watchlists int
}

func (c *captureEvents) PublishEntry(_ context.Context, t models.Trade) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, t)
	return nil
}

func (c *captureEvents) PublishExit(_ context.Context, rec models.TradeHistoryRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exits = append(c.exits, rec)
	return nil
}

func (c *captureEvents) PublishWatchlist(_ context.Context, _ models.Watchlist) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchlists++
	return nil
}

func (c *captureEvents) Close() error { return nil }

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureNotifier) Notify(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordPairEvaluated(string)          {}
func (nopMetrics) RecordSignal(string, string)         {}
func (nopMetrics) RecordLiveTrades(int)                {}
func (nopMetrics) RecordWatchlistSize(int)             {}
func (nopMetrics) RecordCycleDuration(string, float64) {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLastPrice(string, float64)     {}
func (nopMetrics) RecordZScore(string, float64)        {}

func dailySeries(start time.Time, closes []float64) models.PriceSeries {
	pts := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		pts[i] = models.PricePoint{Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	return models.PriceSeries{Points: pts}
}
