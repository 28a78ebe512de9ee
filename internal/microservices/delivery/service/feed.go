package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/livequeue"
	"marketplace-system/internal/microservices/delivery/repository"
)

var errStreamClosed = errors.New("change feed stream closed")

// FeedConsumer keeps the live-queue projection in sync with the
// parent-orders change feed: seed once from a snapshot, then reduce
// events in arrival order. Any stream gap (dropped connection, consumer
// cancel) is recovered by discarding state and reseeding, never by
// inferring missed deltas. A slow periodic resync covers the rest.
type FeedConsumer struct {
	rmq   *rabbitmq.Client
	db    repository.DeliveryRepositoryInterface
	queue *livequeue.Projection
	lg    *logger.Logger

	ResyncEvery time.Duration
}

func NewFeedConsumer(rmq *rabbitmq.Client, db repository.DeliveryRepositoryInterface, queue *livequeue.Projection, lg *logger.Logger) *FeedConsumer {
	return &FeedConsumer{rmq: rmq, db: db, queue: queue, lg: lg, ResyncEvery: time.Minute}
}

// Run blocks until ctx is canceled, reconnecting after stream loss.
func (fc *FeedConsumer) Run(ctx context.Context) error {
	const retryDelay = 2 * time.Second
	for {
		err := fc.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		fc.lg.Error("feed_session_lost", err, nil)
		fc.queue.Reset()

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (fc *FeedConsumer) session(ctx context.Context) error {
	ch, queueName, err := fc.rmq.SessionQueue(rabbitmq.ParentOrdersExchange)
	if err != nil {
		return err
	}
	defer ch.Close()

	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))

	const consumerTag = "live-queue"
	msgs, err := ch.Consume(queueName, consumerTag, true, true, false, false, nil)
	if err != nil {
		return err
	}

	// snapshot after the subscription is open, so nothing committed
	// between the two can be missed
	rows, err := fc.db.SnapshotReadyUnassigned(ctx)
	if err != nil {
		return err
	}
	fc.queue.Seed(rows)
	fc.lg.Info("live_queue_seeded", map[string]any{"entries": fc.queue.Len()})

	ticker := time.NewTicker(fc.ResyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// stop delivery before the projection goes away
			_ = ch.Cancel(consumerTag, false)
			return nil

		case e := <-closeCh:
			if e != nil {
				return e
			}
			return errStreamClosed

		case d, ok := <-msgs:
			if !ok {
				return errStreamClosed
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				// one bad event must not kill the subscription
				fc.lg.Warn("change_event_skipped", map[string]any{"reason": err.Error()})
				continue
			}
			fc.queue.Apply(ev)

		case <-ticker.C:
			rows, err := fc.db.SnapshotReadyUnassigned(ctx)
			if err != nil {
				fc.lg.Error("resync_failed", err, nil)
				continue
			}
			fc.queue.Seed(rows)
			fc.lg.Debug("live_queue_resynced", map[string]any{"entries": fc.queue.Len()})
		}
	}
}
