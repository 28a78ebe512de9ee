// Package feed publishes parent-order change events and courier-push
// signals onto the broker. Services depend on the narrow interfaces they
// need; this is the one real implementation.
package feed

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/domain"
)

type Publisher struct {
	rmq    *rabbitmq.Client
	source string
}

func NewPublisher(rmq *rabbitmq.Client, source string) *Publisher {
	return &Publisher{rmq: rmq, source: source}
}

// PublishChange emits one change-feed event for a parent-order row.
// Events for a single row are published from the transaction commit
// path, so per-row commit order is preserved.
func (p *Publisher) PublishChange(ctx context.Context, ev domain.ChangeEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.rmq.PublishJSON(ctx, rabbitmq.ParentOrdersExchange, "", ev, amqp.Table{
		"x-source": p.source,
	})
}

// PublishReadySignal emits the "ready for pickup, no courier assigned"
// trigger consumed by the notification subscriber.
func (p *Publisher) PublishReadySignal(ctx context.Context, sig domain.ReadyForPickupSignal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.rmq.PublishJSON(ctx, rabbitmq.NotificationsExchange, "", sig, amqp.Table{
		"x-source": p.source,
	})
}
