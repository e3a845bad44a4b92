package repository

import (
	"context"
	"errors"
	"fmt"

	"PairPull/internal/domain/models"
	domrepo "PairPull/internal/domain/repository"
	"PairPull/pkg/cache"
	applogger "PairPull/pkg/logger"
)

const (
	watchlistKey  = "state:watchlist"
	liveTradesKey = "state:live_trades"
)

// RedisStateStore persists the watchlist and the live-trade set as whole
// JSON documents. Every write replaces the full document; readers always
// see either the old or the new version, never a partial update.
type RedisStateStore struct {
	cache cache.Service
	l     *applogger.Logger
}

var _ domrepo.StateStore = (*RedisStateStore)(nil)

func NewRedisStateStore(c cache.Service) *RedisStateStore {
	return &RedisStateStore{cache: c}
}

// SetLogger injects a structured logger.
func (s *RedisStateStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *RedisStateStore) Watchlist(ctx context.Context) (models.Watchlist, error) {
	var w models.Watchlist
	err := s.cache.Get(ctx, watchlistKey, &w)
	if errors.Is(err, cache.ErrCacheMiss) {
		// No scan has run yet: empty watchlist, not an error.
		return models.Watchlist{}, nil
	}
	if err != nil {
		return models.Watchlist{}, fmt.Errorf("load watchlist: %w", err)
	}
	return w, nil
}

func (s *RedisStateStore) ReplaceWatchlist(ctx context.Context, w models.Watchlist) error {
	if err := s.cache.Set(ctx, watchlistKey, w, 0); err != nil {
		return fmt.Errorf("store watchlist: %w", err)
	}
	if s.l != nil {
		s.l.Debug("watchlist replaced",
			applogger.Int("entries", len(w.Entries)),
			applogger.Int("version", int(w.Version)))
	}
	return nil
}

func (s *RedisStateStore) LiveTrades(ctx context.Context) (models.LiveTradeSet, error) {
	var set models.LiveTradeSet
	err := s.cache.Get(ctx, liveTradesKey, &set)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.LiveTradeSet{Trades: map[string]models.Trade{}}, nil
	}
	if err != nil {
		return models.LiveTradeSet{}, fmt.Errorf("load live trades: %w", err)
	}
	if set.Trades == nil {
		set.Trades = map[string]models.Trade{}
	}
	return set, nil
}

func (s *RedisStateStore) ReplaceLiveTrades(ctx context.Context, set models.LiveTradeSet) error {
	if err := s.cache.Set(ctx, liveTradesKey, set, 0); err != nil {
		return fmt.Errorf("store live trades: %w", err)
	}
	if s.l != nil {
		s.l.Debug("live trades replaced",
			applogger.Int("trades", len(set.Trades)),
			applogger.Int("version", int(set.Version)))
	}
	return nil
}
