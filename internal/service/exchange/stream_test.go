package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"PairPull/pkg/logger"

	"github.com/gorilla/websocket"
)

func TestStreamReadDeliversTicksAndClosesOnError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		var sub subscribeMsg
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
		}
		if sub.Method != "SUBSCRIBE" || len(sub.Params) != 1 || sub.Params[0] != "aaausdt@miniTicker" {
			t.Errorf("subscribe = %+v", sub)
		}
		frame := `{"stream":"aaausdt@miniTicker","data":{"e":"24hrMiniTicker","E":1735689600000,"s":"AAAUSDT","c":"105.5"}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Errorf("write frame: %v", err)
		}
		conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStream(wsURL, time.Millisecond, 10*time.Millisecond, logger.Nop())
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Subscribe(ctx, []string{"AAAUSDT"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	before := runtime.NumGoroutine()
	ticks, errs := s.Read(ctx)

	tick, ok := <-ticks
	if !ok {
		t.Fatal("ticks closed before delivering anything")
	}
	if tick.Symbol != "AAAUSDT" || tick.Price != 105.5 {
		t.Fatalf("tick = %+v", tick)
	}
	if tick.Timestamp != 1735689600 {
		t.Fatalf("tick timestamp = %d", tick.Timestamp)
	}

	if _, ok := <-errs; !ok {
		t.Fatal("errs closed without an error after the server hung up")
	}
	if _, ok := <-ticks; ok {
		t.Fatal("ticks still open after the read loop exited")
	}

	// The ping writer is tied to the read loop; both goroutines must be
	// gone once the channels close.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > before {
		t.Fatalf("goroutines = %d after read loop exit, was %d before Read", n, before)
	}
}
