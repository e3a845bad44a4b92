package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PairPull/internal/domain/models"
	domrepo "PairPull/internal/domain/repository"
	pkgch "PairPull/pkg/clickhouse"
	applogger "PairPull/pkg/logger"
)

// CHHistoryStore archives closed trades in ClickHouse. Append-only; rows
// are never updated or deleted.
type CHHistoryStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)

func NewCHHistoryStore(ch *pkgch.Client) *CHHistoryStore {
	return &CHHistoryStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the trade-history table exists (idempotent).
func (s *CHHistoryStore) Init(ctx context.Context) error {
	stmts := []string{`
        CREATE TABLE IF NOT EXISTS trade_history (
            trade_id        String,
            pair            String,
            direction       LowCardinality(String),
            manual          UInt8,
            entry_time      DateTime64(3, 'UTC'),
            exit_time       DateTime64(3, 'UTC'),
            entry_z         Float64,
            exit_z          Float64,
            entry_price1    Float64,
            entry_price2    Float64,
            exit_price1     Float64,
            exit_price2     Float64,
            beta            Float64,
            long_symbol     String,
            short_symbol    String,
            long_weight     Float64,
            short_weight    Float64,
            exit_reason     LowCardinality(String),
            long_pnl_pct    Float64,
            short_pnl_pct   Float64,
            total_pnl_pct   Float64,
            holding_days    Float64
        )
        ENGINE = MergeTree()
        PARTITION BY toYYYYMM(exit_time)
        ORDER BY (pair, exit_time)
    `}
	return s.client.InitSchema(ctx, stmts)
}

func (s *CHHistoryStore) Append(ctx context.Context, rec models.TradeHistoryRecord) error {
	start := time.Now()
	const q = `
        INSERT INTO trade_history (
            trade_id, pair, direction, manual,
            entry_time, exit_time, entry_z, exit_z,
            entry_price1, entry_price2, exit_price1, exit_price2,
            beta, long_symbol, short_symbol, long_weight, short_weight,
            exit_reason, long_pnl_pct, short_pnl_pct, total_pnl_pct, holding_days
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	manual := uint8(0)
	if rec.Manual {
		manual = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.Pair.String(), string(rec.Direction), manual,
		rec.EntryTime, rec.ExitTime, rec.EntryZScore, rec.ExitZScore,
		rec.EntryPrice1, rec.EntryPrice2, rec.ExitPrice1, rec.ExitPrice2,
		rec.Beta, rec.LongSymbol, rec.ShortSymbol, rec.LongWeight, rec.ShortWeight,
		rec.ExitReason, rec.LongPnLPct, rec.ShortPnLPct, rec.TotalPnLPct, rec.HoldingDays,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse trade insert error",
				applogger.String("trade_id", rec.ID),
				applogger.String("pair", rec.Pair.String()),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append trade history: %w", err)
	}
	if s.l != nil {
		s.l.Debug("trade archived",
			applogger.String("trade_id", rec.ID),
			applogger.String("pair", rec.Pair.String()),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

func (s *CHHistoryStore) Query(ctx context.Context, pair string, limit int) ([]models.TradeHistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
        SELECT trade_id, pair, direction, manual,
               entry_time, exit_time, entry_z, exit_z,
               entry_price1, entry_price2, exit_price1, exit_price2,
               beta, long_symbol, short_symbol, long_weight, short_weight,
               exit_reason, long_pnl_pct, short_pnl_pct, total_pnl_pct, holding_days
        FROM trade_history
    `
	args := []interface{}{}
	if pair != "" {
		q += " WHERE pair = ?"
		args = append(args, pair)
	}
	q += " ORDER BY exit_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query trade history: %w", err)
	}
	defer rows.Close()

	out := make([]models.TradeHistoryRecord, 0, limit)
	for rows.Next() {
		var (
			rec      models.TradeHistoryRecord
			pairName string
			dir      string
			manual   uint8
		)
		if err := rows.Scan(
			&rec.ID, &pairName, &dir, &manual,
			&rec.EntryTime, &rec.ExitTime, &rec.EntryZScore, &rec.ExitZScore,
			&rec.EntryPrice1, &rec.EntryPrice2, &rec.ExitPrice1, &rec.ExitPrice2,
			&rec.Beta, &rec.LongSymbol, &rec.ShortSymbol, &rec.LongWeight, &rec.ShortWeight,
			&rec.ExitReason, &rec.LongPnLPct, &rec.ShortPnLPct, &rec.TotalPnLPct, &rec.HoldingDays,
		); err != nil {
			return nil, fmt.Errorf("scan trade history: %w", err)
		}
		p, err := models.ParsePair(pairName)
		if err != nil {
			return nil, fmt.Errorf("stored pair: %w", err)
		}
		rec.Pair = p
		rec.Direction = models.Direction(dir)
		rec.Manual = manual != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHHistoryStore) Close() error {
	return s.client.Close()
}
