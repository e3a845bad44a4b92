package repository

import (
	"context"

	"PairPull/internal/domain/models"
	domrepo "PairPull/internal/domain/repository"
	applogger "PairPull/pkg/logger"
)

// NopHistoryStore is the archive used when ClickHouse is disabled. Closed
// trades are logged and dropped; queries return nothing.
type NopHistoryStore struct {
	l *applogger.Logger
}

var _ domrepo.HistoryStore = (*NopHistoryStore)(nil)

func NewNopHistoryStore(l *applogger.Logger) *NopHistoryStore {
	return &NopHistoryStore{l: l}
}

func (s *NopHistoryStore) Init(context.Context) error { return nil }

func (s *NopHistoryStore) Append(_ context.Context, rec models.TradeHistoryRecord) error {
	if s.l != nil {
		s.l.Info("trade history (archive disabled)",
			applogger.String("trade_id", rec.ID),
			applogger.String("pair", rec.Pair.String()),
			applogger.String("reason", rec.ExitReason),
			applogger.Float64("pnl_pct", rec.TotalPnLPct))
	}
	return nil
}

func (s *NopHistoryStore) Query(context.Context, string, int) ([]models.TradeHistoryRecord, error) {
	return nil, nil
}

func (s *NopHistoryStore) Health(context.Context) error { return nil }

func (s *NopHistoryStore) Close() error { return nil }
