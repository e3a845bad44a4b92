package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pairsEvaluated *prometheus.CounterVec
	signals        *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	liveTrades     prometheus.Gauge
	watchlistSize  prometheus.Gauge
	lastPrice      *prometheus.GaugeVec
	zScore         *prometheus.GaugeVec
	cycleDuration  *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		pairsEvaluated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpull_pairs_evaluated_total",
				Help: "Pair evaluations by outcome",
			},
			[]string{"outcome"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpull_signals_total",
				Help: "Trade signals by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		liveTrades: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairpull_live_trades",
				Help: "Number of currently open pair trades",
			},
		),
		watchlistSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairpull_watchlist_size",
				Help: "Number of pairs on the current watchlist",
			},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairpull_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		zScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairpull_pair_z_score",
				Help: "Latest rolling z-score per monitored pair",
			},
			[]string{"pair"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairpull_cycle_duration_seconds",
				Help:    "Duration of scan and monitor cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cycle"},
		),
	}
}

// RecordPairEvaluated records one pair evaluation outcome.
func (r *Recorder) RecordPairEvaluated(outcome string) {
	r.pairsEvaluated.WithLabelValues(outcome).Inc()
}

// RecordSignal records an entry/exit signal.
func (r *Recorder) RecordSignal(kind, reason string) {
	r.signals.WithLabelValues(kind, reason).Inc()
}

// RecordLiveTrades records the open-trade count.
func (r *Recorder) RecordLiveTrades(n int) {
	r.liveTrades.Set(float64(n))
}

// RecordWatchlistSize records the watchlist size.
func (r *Recorder) RecordWatchlistSize(n int) {
	r.watchlistSize.Set(float64(n))
}

// RecordCycleDuration records one cycle duration in seconds.
func (r *Recorder) RecordCycleDuration(cycle string, seconds float64) {
	r.cycleDuration.WithLabelValues(cycle).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordZScore records the latest z-score for a pair.
func (r *Recorder) RecordZScore(pair string, z float64) {
	r.zScore.WithLabelValues(pair).Set(z)
}
