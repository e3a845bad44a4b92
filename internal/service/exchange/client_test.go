package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	xhttp "PairPull/pkg/http"
)

func TestGetDailyCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval = %s", got)
		}
		fmt.Fprint(w, `[
            [1735689600000, "104.0", "110.0", "100.0", "105.5", "123", 1735775999999],
            [1735776000000, "105.5", "112.0", "101.0", "107.25", "456", 1735862399999]
        ]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, xhttp.NewClient(), WithRetry(1, time.Millisecond, time.Millisecond))
	s, err := c.GetDailyCloses(context.Background(), "BTCUSDT", 2)
	if err != nil {
		t.Fatalf("daily closes: %v", err)
	}
	if len(s.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(s.Points))
	}
	if s.Points[0].Close != 105.5 || s.Points[1].Close != 107.25 {
		t.Fatalf("closes = %v / %v", s.Points[0].Close, s.Points[1].Close)
	}
	if s.Points[0].Timestamp.Unix() != 1735689600 {
		t.Fatalf("timestamp = %v", s.Points[0].Timestamp)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[[1735689600000, "1", "1", "1", "42.0", "0", 0]]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, xhttp.NewClient(),
		WithRetry(5, time.Millisecond, 2*time.Millisecond))
	s, err := c.GetDailyCloses(context.Background(), "ETHUSDT", 1)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if s.Points[0].Close != 42.0 {
		t.Fatalf("close = %v", s.Points[0].Close)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, xhttp.NewClient(),
		WithRetry(3, time.Millisecond, 2*time.Millisecond))
	if _, err := c.GetDailyCloses(context.Background(), "BTCUSDT", 1); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestGetUniverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/ticker/24hr":
			fmt.Fprint(w, `[
                {"symbol": "BTCUSDT", "quoteVolume": "50000000.5"},
                {"symbol": "ETHUSDT", "quoteVolume": "30000000.25"}
            ]`)
		case "/fapi/v1/openInterest":
			fmt.Fprintf(w, `{"symbol": %q, "openInterest": "1234.5"}`, r.URL.Query().Get("symbol"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	sectors := map[string]string{"BTCUSDT": "l1", "ETHUSDT": "l1"}
	c := NewClient(srv.URL, xhttp.NewClient(),
		WithRetry(1, time.Millisecond, time.Millisecond),
		WithSectorMapper(func(sym string) string { return sectors[sym] }),
	)
	assets, err := c.GetUniverse(context.Background())
	if err != nil {
		t.Fatalf("universe: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("assets = %d, want 2", len(assets))
	}
	a := assets[0]
	if a.Symbol != "BTCUSDT" || a.Sector != "l1" {
		t.Fatalf("asset = %+v", a)
	}
	if a.QuoteVolume24 != 50000000.5 || a.OpenInterest != 1234.5 {
		t.Fatalf("liquidity = %v / %v", a.QuoteVolume24, a.OpenInterest)
	}
}

func TestParseTick(t *testing.T) {
	combined := []byte(`{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1735689600123,"s":"BTCUSDT","c":"97531.2"}}`)
	tick, ok := parseTick(combined)
	if !ok {
		t.Fatal("combined frame not parsed")
	}
	if tick.Symbol != "BTCUSDT" || tick.Price != 97531.2 || tick.Timestamp != 1735689600 {
		t.Fatalf("tick = %+v", tick)
	}

	raw := []byte(`{"e":"24hrMiniTicker","E":1735689601000,"s":"ETHUSDT","c":"3456.78"}`)
	tick, ok = parseTick(raw)
	if !ok {
		t.Fatal("raw frame not parsed")
	}
	if tick.Symbol != "ETHUSDT" || tick.Price != 3456.78 {
		t.Fatalf("tick = %+v", tick)
	}

	if _, ok := parseTick([]byte(`{"result":null,"id":1}`)); ok {
		t.Fatal("ack frame should not parse as tick")
	}
}
