package repository

import (
	"context"
	"testing"
	"time"

	"PairPull/internal/domain/models"
	"PairPull/pkg/cache"
)

func TestStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStateStore(cache.NewMemoryCache())

	// Empty store: zero values, no error.
	w, err := store.Watchlist(ctx)
	if err != nil {
		t.Fatalf("empty watchlist: %v", err)
	}
	if len(w.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(w.Entries))
	}
	set, err := store.LiveTrades(ctx)
	if err != nil {
		t.Fatalf("empty live trades: %v", err)
	}
	if set.Trades == nil || len(set.Trades) != 0 {
		t.Fatalf("trades = %v, want empty map", set.Trades)
	}

	pair := models.Pair{Symbol1: "BTCUSDT", Symbol2: "ETHUSDT"}
	want := models.Watchlist{
		Entries: []models.WatchlistEntry{{
			Pair:   pair,
			Sector: "l1",
			Verdict: models.FitnessVerdict{
				Pair:        pair,
				Correlation: 0.91,
				HalfLife:    models.FiniteHalfLife(4.2),
			},
			EntryThreshold: 2.0,
		}},
		ScannedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Version:   3,
	}
	if err := store.ReplaceWatchlist(ctx, want); err != nil {
		t.Fatalf("replace watchlist: %v", err)
	}
	got, err := store.Watchlist(ctx)
	if err != nil {
		t.Fatalf("watchlist: %v", err)
	}
	if len(got.Entries) != 1 || got.Version != 3 {
		t.Fatalf("got entries=%d version=%d", len(got.Entries), got.Version)
	}
	e := got.Entries[0]
	if e.Pair != pair || e.Verdict.Correlation != 0.91 || e.EntryThreshold != 2.0 {
		t.Fatalf("entry mismatch: %+v", e)
	}
	if e.Verdict.HalfLife.Infinite || e.Verdict.HalfLife.Days != 4.2 {
		t.Fatalf("half-life did not survive round trip: %+v", e.Verdict.HalfLife)
	}

	// An infinite half-life must also round-trip cleanly.
	want.Entries[0].Verdict.HalfLife = models.InfiniteHalfLife()
	if err := store.ReplaceWatchlist(ctx, want); err != nil {
		t.Fatalf("replace watchlist: %v", err)
	}
	got, _ = store.Watchlist(ctx)
	if !got.Entries[0].Verdict.HalfLife.Infinite {
		t.Fatal("infinite half-life lost in round trip")
	}

	trades := models.LiveTradeSet{
		Trades: map[string]models.Trade{
			pair.String(): {
				ID: "t1", Pair: pair,
				Direction:   models.DirectionLong,
				EntryZScore: -2.2,
				LongSymbol:  "BTCUSDT", ShortSymbol: "ETHUSDT",
			},
		},
		Version: 7,
	}
	if err := store.ReplaceLiveTrades(ctx, trades); err != nil {
		t.Fatalf("replace live trades: %v", err)
	}
	set, err = store.LiveTrades(ctx)
	if err != nil {
		t.Fatalf("live trades: %v", err)
	}
	tr, ok := set.Trades[pair.String()]
	if !ok || tr.ID != "t1" || tr.Direction != models.DirectionLong {
		t.Fatalf("trade mismatch: %+v", set.Trades)
	}
}
