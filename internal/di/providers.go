package di

import (
	"fmt"
	"time"

	"PairPull/internal/domain/repository"
	"PairPull/internal/handler/api"
	internalrepo "PairPull/internal/repository"
	"PairPull/internal/service/exchange"
	"PairPull/internal/service/notify"
	"PairPull/internal/service/telegram"
	"PairPull/internal/usecase"
	pkgcache "PairPull/pkg/cache"
	pkgch "PairPull/pkg/clickhouse"
	"PairPull/pkg/config"
	xhttp "PairPull/pkg/http"
	pkgkafka "PairPull/pkg/kafka"
	applogger "PairPull/pkg/logger"
	"PairPull/pkg/metrics"
	pkgqueue "PairPull/pkg/queue"
	"PairPull/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the Redis cache used for state and the scan lock.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideStateStore creates the Redis-backed state store.
func ProvideStateStore(c pkgcache.Service, l *applogger.Logger) repository.StateStore {
	s := internalrepo.NewRedisStateStore(c)
	s.SetLogger(l)
	return s
}

// ProvideHistoryStore creates the trade archive. ClickHouse when enabled,
// otherwise a log-and-drop store.
func ProvideHistoryStore(cfg *config.Config, l *applogger.Logger) (repository.HistoryStore, error) {
	if !cfg.ClickHouse.Enabled {
		return internalrepo.NewNopHistoryStore(l), nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	store := internalrepo.NewCHHistoryStore(client)
	store.SetLogger(l)
	return store, nil
}

// ProvideEventPublisher creates the Kafka event publisher, or nil when
// Kafka is disabled. Consumers treat a nil publisher as "no events".
func ProvideEventPublisher(cfg *config.Config, l *applogger.Logger) (repository.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	// Ship aggregated error logs alongside trade events.
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          "pairpull.logs",
		Publisher:      producer,
	})

	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic, ""), nil
}

// ProvideNotifyQueue creates the Redis-backed notification queue, or nil
// when Telegram is disabled. The queue decouples trade transitions from
// messenger API latency and retries failed deliveries.
func ProvideNotifyQueue(cfg *config.Config, c pkgcache.Service, l *applogger.Logger) *pkgqueue.RedisQueue {
	if !cfg.Telegram.Enabled {
		return nil
	}
	rc, ok := c.(*pkgcache.RedisCache)
	if !ok {
		return nil
	}
	sink := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID,
		xhttp.NewClient(xhttp.WithTimeout(cfg.Telegram.Timeout)), l)
	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    1,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, rc.Client(), pkgqueue.ModeProducerConsumer,
		pkgqueue.WithKeyPrefix(cfg.Redis.KeyPrefix+":queue"))
	q.RegisterJob(notify.NewDeliverJob(sink))
	return q
}

// ProvideNotifier creates the queued Telegram notifier, or nil when
// Telegram is disabled.
func ProvideNotifier(q *pkgqueue.RedisQueue) repository.Notifier {
	if q == nil {
		return nil
	}
	return notify.NewQueued(q)
}

// ProvidePriceSource creates the exchange REST client.
func ProvidePriceSource(cfg *config.Config, l *applogger.Logger) repository.PriceSource {
	return exchange.NewClient(cfg.Exchange.BaseURL,
		xhttp.NewClient(xhttp.WithTimeout(cfg.Exchange.Timeout)),
		exchange.WithRetry(cfg.Exchange.MaxAttempts, cfg.Exchange.BackoffMin, cfg.Exchange.BackoffMax),
		exchange.WithRateLimit(cfg.Exchange.RatePerSecond, cfg.Exchange.RateBurst),
		exchange.WithSectorMapper(cfg.Sector),
		exchange.WithLogger(l),
	)
}

// ProvidePriceStream creates the live price stream, or nil when no
// WebSocket URL is configured.
func ProvidePriceStream(cfg *config.Config, l *applogger.Logger) repository.PriceStream {
	if cfg.Exchange.WebSocketURL == "" {
		return nil
	}
	return exchange.NewStream(cfg.Exchange.WebSocketURL,
		cfg.Exchange.ReconnectDelay, cfg.Exchange.PingInterval, l)
}

// ProvideEvaluator creates the pair evaluator.
func ProvideEvaluator(cfg *config.Config) *usecase.PairEvaluator {
	return usecase.NewPairEvaluator(cfg.Engine.RollingWindow, cfg.Engine.ThresholdLadder, cfg.Engine.EntryFloor)
}

// ProvideTradeBook creates the live trade book.
func ProvideTradeBook(cfg *config.Config) *usecase.TradeBook {
	return usecase.NewTradeBook(cfg.Engine.MaxConcurrentTrades)
}

// ProvideExitRules builds the risk exit rules from config. A zero value
// disables the corresponding rule.
func ProvideExitRules(cfg *config.Config) []usecase.ExitRule {
	var rules []usecase.ExitRule
	if cfg.Risk.TakeProfitPct > 0 || cfg.Risk.StopLossPct > 0 {
		rules = append(rules, usecase.TakeProfitStopLoss{
			TakeProfitPct: cfg.Risk.TakeProfitPct,
			StopLossPct:   cfg.Risk.StopLossPct,
		})
	}
	if cfg.Risk.TimeStopHalfLifeMult > 0 {
		rules = append(rules, usecase.TimeStop{HalfLifeMultiple: cfg.Risk.TimeStopHalfLifeMult})
	}
	if cfg.Risk.MaxHurst > 0 {
		rules = append(rules, usecase.RegimeShift{MaxHurst: cfg.Risk.MaxHurst})
	}
	return rules
}

// ProvideScanner creates the watchlist scanner.
func ProvideScanner(
	cfg *config.Config,
	source repository.PriceSource,
	state repository.StateStore,
	events repository.EventPublisher,
	m repository.Metrics,
	eval *usecase.PairEvaluator,
	l *applogger.Logger,
) *usecase.WatchlistScanner {
	return usecase.NewWatchlistScanner(source, state, events, m, eval, l, usecase.ScannerConfig{
		MinQuoteVolume:   cfg.Universe.MinQuoteVolume,
		MinOpenInterest:  cfg.Universe.MinOpenInterest,
		Blacklist:        cfg.Universe.Blacklist,
		MinCorrelation:   cfg.Engine.MinCorrelation,
		MaxHalfLifeDays:  cfg.Engine.MaxHalfLifeDays,
		LookbackDays:     cfg.Engine.LookbackDays,
		TopPerSector:     cfg.Engine.TopPerSector,
		CrossSectorTopK:  cfg.Engine.CrossSectorTopK,
		FetchConcurrency: cfg.Engine.FetchConcurrency,
	})
}

// ProvideMonitor creates the trade monitor.
func ProvideMonitor(
	cfg *config.Config,
	source repository.PriceSource,
	state repository.StateStore,
	history repository.HistoryStore,
	events repository.EventPublisher,
	notifier repository.Notifier,
	m repository.Metrics,
	eval *usecase.PairEvaluator,
	book *usecase.TradeBook,
	l *applogger.Logger,
	exitRules []usecase.ExitRule,
) *usecase.TradeMonitor {
	return usecase.NewTradeMonitor(source, state, history, events, notifier, m, eval, book, l, usecase.MonitorConfig{
		ExitThreshold: cfg.Engine.ExitThreshold,
		LookbackDays:  cfg.Engine.LookbackDays,
	}, exitRules...)
}

// ProvideAnalyzer creates the on-demand pair analyzer.
func ProvideAnalyzer(source repository.PriceSource, eval *usecase.PairEvaluator, l *applogger.Logger) *usecase.PairAnalyzer {
	return usecase.NewPairAnalyzer(source, eval, l)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	l *applogger.Logger,
	analyzer *usecase.PairAnalyzer,
	scanner *usecase.WatchlistScanner,
	monitor *usecase.TradeMonitor,
	state repository.StateStore,
	history repository.HistoryStore,
) xhttp.Handler {
	return api.NewPairsHandler(l, analyzer, scanner, monitor, state, history)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	scanner *usecase.WatchlistScanner,
	monitor *usecase.TradeMonitor,
	analyzer *usecase.PairAnalyzer,
	stream repository.PriceStream,
	state repository.StateStore,
	history repository.HistoryStore,
	events repository.EventPublisher,
	m repository.Metrics,
	locks pkgcache.Service,
	notifyQueue *pkgqueue.RedisQueue,
	handler xhttp.Handler,
) *server.App {
	app := server.New(cfg, l, scanner, monitor, analyzer, stream, state, history, events, m, locks, notifyQueue)
	app.SetHTTPHandler(handler)
	return app
}
