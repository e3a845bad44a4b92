package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	xhttp "PairPull/pkg/http"
	applogger "PairPull/pkg/logger"
	"PairPull/pkg/util"

	"PairPull/internal/service/ratelimit"
)

// Client implements PriceSource against a Binance-futures-style REST API.
// All requests go through a shared token bucket and a bounded retry with
// jittered exponential backoff; the statistics layer never sees a
// transient upstream failure.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	l       *applogger.Logger

	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
	ratePerSec  float64
	rateBurst   float64

	// sectorOf maps a symbol to its configured sector; unmapped symbols
	// land in the scanner's catch-all group.
	sectorOf func(symbol string) string
}

var _ drepo.PriceSource = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithRetry sets attempt count and backoff bounds.
func WithRetry(maxAttempts int, min, max time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoffMin = min
		c.backoffMax = max
	}
}

// WithRateLimit sets the request token bucket.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.ratePerSec = perSecond
		c.rateBurst = float64(burst)
	}
}

// WithSectorMapper sets the symbol-to-sector lookup.
func WithSectorMapper(fn func(symbol string) string) Option {
	return func(c *Client) {
		c.sectorOf = fn
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.l = l
	}
}

// NewClient creates an exchange REST client.
func NewClient(baseURL string, httpClient *xhttp.Client, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		http:        httpClient,
		limiter:     ratelimit.New(),
		maxAttempts: 3,
		backoffMin:  500 * time.Millisecond,
		backoffMax:  10 * time.Second,
		ratePerSec:  5,
		rateBurst:   10,
		sectorOf:    func(string) string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDailyCloses fetches the last `days` daily candles for a symbol.
func (c *Client) GetDailyCloses(ctx context.Context, symbol string, days int) (models.PriceSeries, error) {
	return c.klines(ctx, symbol, "1d", days)
}

// GetHourlyCloses fetches hourly candles in [from, to].
func (c *Client) GetHourlyCloses(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	from, to = util.AlignFromTo(from, to, "1h")
	var raw [][]json.RawMessage
	err := c.do(ctx, "/fapi/v1/klines", map[string][]string{
		"symbol":    {symbol},
		"interval":  {"1h"},
		"startTime": {strconv.FormatInt(from.UnixMilli(), 10)},
		"endTime":   {strconv.FormatInt(to.UnixMilli(), 10)},
		"limit":     {"1000"},
	}, &raw)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("hourly klines %s: %w", symbol, err)
	}
	return parseKlines(symbol, raw)
}

func (c *Client) klines(ctx context.Context, symbol, interval string, limit int) (models.PriceSeries, error) {
	var raw [][]json.RawMessage
	err := c.do(ctx, "/fapi/v1/klines", map[string][]string{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}, &raw)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}
	return parseKlines(symbol, raw)
}

type ticker24h struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

type openInterestResp struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
}

// GetUniverse lists tradeable assets with 24h quote volume and open
// interest. Open interest is fetched per symbol and is best effort:
// a miss leaves it at zero rather than dropping the asset.
func (c *Client) GetUniverse(ctx context.Context) ([]models.Asset, error) {
	var tickers []ticker24h
	if err := c.do(ctx, "/fapi/v1/ticker/24hr", nil, &tickers); err != nil {
		return nil, fmt.Errorf("ticker 24h: %w", err)
	}

	out := make([]models.Asset, 0, len(tickers))
	for _, t := range tickers {
		vol, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		asset := models.Asset{
			Symbol:        t.Symbol,
			Sector:        c.sectorOf(t.Symbol),
			QuoteVolume24: vol,
		}

		var oi openInterestResp
		if err := c.do(ctx, "/fapi/v1/openInterest", map[string][]string{
			"symbol": {t.Symbol},
		}, &oi); err == nil {
			if v, err := strconv.ParseFloat(oi.OpenInterest, 64); err == nil {
				asset.OpenInterest = v
			}
		} else if c.l != nil {
			c.l.Debug("open interest fetch failed",
				applogger.String("symbol", t.Symbol), applogger.Error(err))
		}

		out = append(out, asset)
	}
	return out, nil
}

// do runs one rate-limited GET with retries. Context cancellation stops
// both the wait and the backoff sleeps.
func (c *Client) do(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			if c.l != nil {
				c.l.Debug("retrying request",
					applogger.String("path", path),
					applogger.Int("attempt", attempt),
					applogger.Duration("delay", delay))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx, "rest", c.rateBurst, c.ratePerSec); err != nil {
			return err
		}

		lastErr = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + path,
			QueryParams: params,
		}, dest)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.maxAttempts, lastErr)
}

// backoff is exponential from backoffMin with full jitter, capped at
// backoffMax.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.backoffMin << uint(attempt-1)
	if d > c.backoffMax || d <= 0 {
		d = c.backoffMax
	}
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/2)
}

// parseKlines converts raw kline rows [openTime, open, high, low, close,
// ...] into a close series. Close prices arrive as JSON strings.
func parseKlines(symbol string, raw [][]json.RawMessage) (models.PriceSeries, error) {
	s := models.PriceSeries{Symbol: symbol, Points: make([]models.PricePoint, 0, len(raw))}
	for _, row := range raw {
		if len(row) < 5 {
			return models.PriceSeries{}, fmt.Errorf("kline row for %s has %d fields", symbol, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return models.PriceSeries{}, fmt.Errorf("kline time %s: %w", symbol, err)
		}
		var closeStr string
		if err := json.Unmarshal(row[4], &closeStr); err != nil {
			return models.PriceSeries{}, fmt.Errorf("kline close %s: %w", symbol, err)
		}
		closePx, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return models.PriceSeries{}, fmt.Errorf("kline close %s: %w", symbol, err)
		}
		s.Points = append(s.Points, models.PricePoint{
			Timestamp: time.UnixMilli(openTime).UTC(),
			Close:     closePx,
		})
	}
	return s, nil
}
