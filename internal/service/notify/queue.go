package notify

import (
	"context"
	"fmt"

	drepo "PairPull/internal/domain/repository"
	"PairPull/pkg/queue"
)

const messageType = "notification"

type notification struct {
	Message string `json:"message"`
}

// Queued is a Notifier that enqueues messages instead of delivering them
// inline. A worker drains the queue through DeliverJob, so a flaky
// messenger API never blocks a trade transition and failed deliveries are
// retried.
type Queued struct {
	q *queue.RedisQueue
}

var _ drepo.Notifier = (*Queued)(nil)

func NewQueued(q *queue.RedisQueue) *Queued { return &Queued{q: q} }

func (n *Queued) Notify(ctx context.Context, message string) error {
	return n.q.PublishMessage(ctx, messageType, notification{Message: message})
}

// DeliverJob drains queued notifications into the real sink.
type DeliverJob struct {
	sink drepo.Notifier
}

var _ queue.Job = (*DeliverJob)(nil)

func NewDeliverJob(sink drepo.Notifier) *DeliverJob { return &DeliverJob{sink: sink} }

func (j *DeliverJob) Name() string { return "notify.deliver" }

func (j *DeliverJob) Type() string { return messageType }

func (j *DeliverJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[notification](payload)
	if err != nil {
		return fmt.Errorf("notification payload: %w", err)
	}
	return j.sink.Notify(ctx, p.Message)
}
