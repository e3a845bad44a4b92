package repository

import (
	"context"
	"time"

	"PairPull/internal/domain/models"
	domrepo "PairPull/internal/domain/repository"
	pkgkafka "PairPull/pkg/kafka"
)

// KafkaEventPublisher emits lifecycle and watchlist events. Messages are
// keyed by pair so per-pair ordering survives partitioning.
type KafkaEventPublisher struct {
	producer       *pkgkafka.Producer
	tradeTopic     string
	watchlistTopic string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(p *pkgkafka.Producer, tradeTopic, watchlistTopic string) *KafkaEventPublisher {
	if tradeTopic == "" {
		tradeTopic = "pairpull.trades"
	}
	if watchlistTopic == "" {
		watchlistTopic = "pairpull.watchlist"
	}
	return &KafkaEventPublisher{
		producer:       p,
		tradeTopic:     tradeTopic,
		watchlistTopic: watchlistTopic,
	}
}

type tradeEvent struct {
	Type      string                     `json:"type"`
	Trade     *models.Trade              `json:"trade,omitempty"`
	Record    *models.TradeHistoryRecord `json:"record,omitempty"`
	EmittedAt time.Time                  `json:"emitted_at"`
}

func (p *KafkaEventPublisher) PublishEntry(ctx context.Context, t models.Trade) error {
	ev := tradeEvent{Type: "entry", Trade: &t, EmittedAt: time.Now().UTC()}
	return p.producer.Publish(ctx, p.tradeTopic, []byte(t.Pair.String()), ev)
}

func (p *KafkaEventPublisher) PublishExit(ctx context.Context, rec models.TradeHistoryRecord) error {
	ev := tradeEvent{Type: "exit", Record: &rec, EmittedAt: time.Now().UTC()}
	return p.producer.Publish(ctx, p.tradeTopic, []byte(rec.Pair.String()), ev)
}

func (p *KafkaEventPublisher) PublishWatchlist(ctx context.Context, w models.Watchlist) error {
	return p.producer.Publish(ctx, p.watchlistTopic, []byte("watchlist"), w)
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}
