package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"PairPull/internal/domain/models"
	drepo "PairPull/internal/domain/repository"
	"PairPull/internal/usecase"
	pkgcache "PairPull/pkg/cache"
	"PairPull/pkg/config"
	xhttp "PairPull/pkg/http"
	applogger "PairPull/pkg/logger"
	pkgqueue "PairPull/pkg/queue"
)

// scanLockKey guards scan exclusivity across instances sharing one Redis.
const scanLockKey = "lock:scan"

// App encapsulates the entire application lifecycle: scan ticker, monitor
// ticker, live price stream, and the HTTP API.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	scanner  *usecase.WatchlistScanner
	monitor  *usecase.TradeMonitor
	analyzer *usecase.PairAnalyzer
	stream   drepo.PriceStream
	state    drepo.StateStore
	history  drepo.HistoryStore
	events   drepo.EventPublisher
	metrics  drepo.Metrics
	locks    pkgcache.Service
	queue    *pkgqueue.RedisQueue

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	scanner *usecase.WatchlistScanner,
	monitor *usecase.TradeMonitor,
	analyzer *usecase.PairAnalyzer,
	stream drepo.PriceStream,
	state drepo.StateStore,
	history drepo.HistoryStore,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	locks pkgcache.Service,
	queue *pkgqueue.RedisQueue,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		scanner:  scanner,
		monitor:  monitor,
		analyzer: analyzer,
		stream:   stream,
		state:    state,
		history:  history,
		events:   events,
		metrics:  metrics,
		locks:    locks,
		queue:    queue,
	}
}

// SetHTTPHandler allows DI to inject the HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.history.Init(ctx); err != nil {
		return err
	}
	if err := a.monitor.Hydrate(ctx); err != nil {
		return err
	}
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.runScanLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		a.runMonitorLoop(ctx)
	}()
	if a.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runStreamLoop(ctx)
		}()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		cancel()
		wg.Wait()
		return err
	}
	a.log.Info("engine started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Duration("scan_interval", a.cfg.Engine.ScanInterval),
		applogger.Duration("monitor_interval", a.cfg.Engine.MonitorInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	wg.Wait()
	return a.shutdown()
}

// One-shot entrypoints for the CLI subcommands. Each hydrates whatever
// state it needs and returns instead of looping.

// RunScanOnce performs a single scan cycle and returns the watchlist.
func (a *App) RunScanOnce(ctx context.Context) (models.Watchlist, error) {
	w, err := a.scanner.Scan(ctx)
	if err != nil {
		return models.Watchlist{}, err
	}
	a.log.Info("scan done", applogger.Int("watchlist", len(w.Entries)))
	return w, nil
}

// RunMonitorOnce performs a single monitor cycle over the persisted
// watchlist and live trades.
func (a *App) RunMonitorOnce(ctx context.Context) error {
	if err := a.history.Init(ctx); err != nil {
		return err
	}
	if err := a.monitor.Hydrate(ctx); err != nil {
		return err
	}
	return a.monitor.RunCycle(ctx)
}

// AnalyzePair evaluates an arbitrary pair on demand.
func (a *App) AnalyzePair(ctx context.Context, symbol1, symbol2 string, days int, cutoff time.Time) (models.AnalyzeResult, error) {
	return a.analyzer.Analyze(ctx, symbol1, symbol2, days, cutoff)
}

// EnterPair opens a manual position for "SYMBOL1/SYMBOL2".
func (a *App) EnterPair(ctx context.Context, pairName string) (models.Trade, error) {
	pair, err := models.ParsePair(pairName)
	if err != nil {
		return models.Trade{}, err
	}
	if err := a.history.Init(ctx); err != nil {
		return models.Trade{}, err
	}
	if err := a.monitor.Hydrate(ctx); err != nil {
		return models.Trade{}, err
	}
	return a.monitor.EnterPair(ctx, pair)
}

// ExitPair closes a live position for "SYMBOL1/SYMBOL2".
func (a *App) ExitPair(ctx context.Context, pairName string) (models.TradeHistoryRecord, error) {
	pair, err := models.ParsePair(pairName)
	if err != nil {
		return models.TradeHistoryRecord{}, err
	}
	if err := a.history.Init(ctx); err != nil {
		return models.TradeHistoryRecord{}, err
	}
	if err := a.monitor.Hydrate(ctx); err != nil {
		return models.TradeHistoryRecord{}, err
	}
	return a.monitor.ExitPair(ctx, pair)
}

// History queries the trade archive, optionally filtered by pair name.
func (a *App) History(ctx context.Context, pairName string, limit int) ([]models.TradeHistoryRecord, error) {
	if err := a.history.Init(ctx); err != nil {
		return nil, err
	}
	return a.history.Query(ctx, pairName, limit)
}

// runScanLoop scans immediately, then on every tick. The scan lock keeps
// concurrent instances from hammering the exchange with the same work.
func (a *App) runScanLoop(ctx context.Context) {
	a.scanOnce(ctx)

	ticker := time.NewTicker(a.cfg.Engine.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.scanOnce(ctx)
		}
	}
}

func (a *App) scanOnce(ctx context.Context) {
	if a.locks != nil {
		ok, err := a.locks.TryLock(ctx, scanLockKey, a.cfg.Engine.ScanInterval)
		if err != nil {
			a.log.Warn("scan lock error", applogger.Error(err))
		} else if !ok {
			a.log.Debug("scan skipped, another instance holds the lock")
			return
		}
		defer func() {
			if err == nil && ok {
				if uerr := a.locks.Unlock(ctx, scanLockKey); uerr != nil {
					a.log.Warn("scan unlock error", applogger.Error(uerr))
				}
			}
		}()
	}

	w, err := a.scanner.Scan(ctx)
	if err != nil {
		a.log.Error("scan cycle failed", applogger.Error(err))
		return
	}
	a.log.Info("scan cycle done", applogger.Int("watchlist", len(w.Entries)))
}

func (a *App) runMonitorLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Engine.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.monitor.RunCycle(ctx); err != nil {
				a.log.Error("monitor cycle failed", applogger.Error(err))
			}
		}
	}
}

// runStreamLoop feeds live prices into the metrics gauges. The stream is
// advisory: trade decisions run off daily closes, so a dead stream only
// dims the dashboard.
func (a *App) runStreamLoop(ctx context.Context) {
	if err := a.stream.Connect(ctx); err != nil {
		a.log.Error("stream connect failed", applogger.Error(err))
		return
	}
	defer func() { _ = a.stream.Close() }()

	a.subscribeWatchlist(ctx)

	for {
		ticks, errs := a.stream.Read(ctx)
	drain:
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-ticks:
				if !ok {
					break drain
				}
				a.metrics.RecordLastPrice(t.Symbol, t.Price)
			case err, ok := <-errs:
				if !ok {
					break drain
				}
				if err != nil {
					a.log.Warn("stream read error", applogger.Error(err))
					a.metrics.RecordError("stream_read")
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
		if err := a.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error("stream reconnect failed", applogger.Error(err))
			continue
		}
		a.subscribeWatchlist(ctx)
	}
}

// subscribeWatchlist subscribes the stream to every leg on the current
// watchlist plus the legs of live trades.
func (a *App) subscribeWatchlist(ctx context.Context) {
	w, err := a.state.Watchlist(ctx)
	if err != nil {
		a.log.Warn("watchlist read for stream failed", applogger.Error(err))
	}
	set := make(map[string]struct{})
	for _, e := range w.Entries {
		set[e.Pair.Symbol1] = struct{}{}
		set[e.Pair.Symbol2] = struct{}{}
	}
	if live, err := a.state.LiveTrades(ctx); err == nil {
		for _, t := range live.Trades {
			set[t.Pair.Symbol1] = struct{}{}
			set[t.Pair.Symbol2] = struct{}{}
		}
	}
	if len(set) == 0 {
		return
	}
	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}
	if err := a.stream.Subscribe(ctx, symbols); err != nil {
		a.log.Warn("stream subscribe failed", applogger.Error(err))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.log.Warn("notify queue stop error", applogger.Error(err))
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if err := a.history.Close(); err != nil {
		a.log.Warn("history store close error", applogger.Error(err))
	}
	if c, ok := a.locks.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
