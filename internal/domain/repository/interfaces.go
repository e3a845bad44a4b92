package repository

import (
	"context"
	"time"

	"PairPull/internal/domain/models"
)

// PriceSource serves historical closes and the tradeable universe. The core
// does not know which upstream (exchange API, cache) served the data; the
// source must return ordered, gap-aware series. Retry/backoff lives behind
// this interface, not in the statistics layer.
type PriceSource interface {
	GetDailyCloses(ctx context.Context, symbol string, days int) (models.PriceSeries, error)
	GetHourlyCloses(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
	GetUniverse(ctx context.Context) ([]models.Asset, error)
}

// PriceStream is a live last-price feed.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// StateStore persists trade state as whole-document replace operations.
// Reads return a consistent snapshot; writes swap the full document, which
// is what makes a concurrent scan and monitor cycle safe.
type StateStore interface {
	Watchlist(ctx context.Context) (models.Watchlist, error)
	ReplaceWatchlist(ctx context.Context, w models.Watchlist) error
	LiveTrades(ctx context.Context) (models.LiveTradeSet, error)
	ReplaceLiveTrades(ctx context.Context, s models.LiveTradeSet) error
}

// HistoryStore archives closed trades.
type HistoryStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, rec models.TradeHistoryRecord) error
	Query(ctx context.Context, pair string, limit int) ([]models.TradeHistoryRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits trade lifecycle and watchlist events.
type EventPublisher interface {
	PublishEntry(ctx context.Context, t models.Trade) error
	PublishExit(ctx context.Context, rec models.TradeHistoryRecord) error
	PublishWatchlist(ctx context.Context, w models.Watchlist) error
	Close() error
}

// Notifier is the single outbound message sink. A failed notification must
// never fail the transition that produced it.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Metrics records engine telemetry.
type Metrics interface {
	RecordPairEvaluated(outcome string)
	RecordSignal(kind, reason string)
	RecordLiveTrades(n int)
	RecordWatchlistSize(n int)
	RecordCycleDuration(cycle string, seconds float64)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordZScore(pair string, z float64)
}
