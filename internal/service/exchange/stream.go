package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	applogger "PairPull/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements PriceStream over the exchange mini-ticker WebSocket.
type Stream struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	symbols   []string
	connected bool
}

var _ drepo.PriceStream = (*Stream)(nil)

// NewStream creates a mini-ticker price stream.
func NewStream(websocketURL string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	if s.l != nil {
		s.l.Info("price stream connected", applogger.String("url", s.websocketURL))
	}
	return nil
}

type subscribeMsg struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Subscribe subscribes to mini-ticker updates for the given symbols. The
// symbol list is remembered for reconnects.
func (s *Stream) Subscribe(_ context.Context, symbols []string) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("stream not connected")
	}
	s.symbols = symbols

	params := make([]string, len(symbols))
	for i, sym := range symbols {
		params[i] = strings.ToLower(sym) + "@miniTicker"
	}
	msg := subscribeMsg{Method: "SUBSCRIBE", Params: params, ID: 1}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if s.l != nil {
		s.l.Info("price stream subscribed", applogger.Int("symbols", len(symbols)))
	}
	return nil
}

type miniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // ms
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

type streamFrame struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

// Read streams ticks and errors. Both channels close when the read loop
// exits; a single error signals the caller to Reconnect. The ping writer
// is pinned to this call's connection and stops with the read loop, so a
// Reconnect + Read round never leaves a stale pinger behind.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})
	conn := s.conn

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(ticks)
		defer close(errs)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				tick, ok := parseTick(b)
				if !ok {
					continue
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

func parseTick(b []byte) (*models.Tick, bool) {
	var frame streamFrame
	if err := json.Unmarshal(b, &frame); err != nil {
		return nil, false
	}
	data := frame.Data
	if data.Symbol == "" {
		// Raw (non-combined) frame.
		if err := json.Unmarshal(b, &data); err != nil {
			return nil, false
		}
	}
	if data.Symbol == "" || data.Close == "" {
		return nil, false
	}
	price, err := strconv.ParseFloat(data.Close, 64)
	if err != nil {
		return nil, false
	}
	return &models.Tick{
		Symbol:    data.Symbol,
		Price:     price,
		Timestamp: data.EventTime / 1000,
	}, true
}

// Reconnect closes, waits, and re-subscribes the remembered symbols.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx, s.symbols)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }
