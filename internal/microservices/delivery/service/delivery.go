package service

import (
	"context"
	"fmt"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/livequeue"
	"marketplace-system/internal/microservices/delivery/repository"
)

type FeedPublisher interface {
	PublishChange(ctx context.Context, ev domain.ChangeEvent) error
}

type DeliveryServiceInterface interface {
	Queue() []domain.ParentOrderRecord
	Claim(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, error)
	UpdateStatus(ctx context.Context, orderNumber, courier string, to domain.ParentStatus) (domain.ParentOrderRecord, error)
	CourierOnline(ctx context.Context, name string) error
	CourierOffline(ctx context.Context, name string) error
	CourierHeartbeat(ctx context.Context, name string) error
}

type DeliveryService struct {
	db    repository.DeliveryRepositoryInterface
	feed  FeedPublisher
	queue *livequeue.Projection
	lg    *logger.Logger
}

func NewDeliveryService(db repository.DeliveryRepositoryInterface, feed FeedPublisher, queue *livequeue.Projection, lg *logger.Logger) *DeliveryService {
	return &DeliveryService{db: db, feed: feed, queue: queue, lg: lg}
}

// Queue returns the live-queue projection snapshot, oldest ready first.
func (ds *DeliveryService) Queue() []domain.ParentOrderRecord {
	return ds.queue.Entries()
}

// Claim assigns the courier via the repository's guarded update. A lost
// race surfaces as ErrOrderTaken, not a hard failure; the caller just
// refreshes its view.
func (ds *DeliveryService) Claim(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, error) {
	before, after, err := ds.db.ClaimTx(ctx, orderNumber, courier)
	if err != nil {
		return domain.ParentOrderRecord{}, err
	}

	ds.lg.Info("order_claimed", map[string]any{
		"order_number": orderNumber,
		"courier":      courier,
	})

	// drop locally right away; the feed event removes it everywhere else
	ds.queue.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &after, Old: &before})
	if err := ds.feed.PublishChange(ctx, domain.ChangeEvent{
		EventType: domain.EventUpdate,
		New:       &after,
		Old:       &before,
	}); err != nil {
		ds.lg.Error("change_event_publish_failed", err, map[string]any{"order_number": orderNumber})
	}
	return after, nil
}

// UpdateStatus handles the courier-side transitions OUT_FOR_DELIVERY and
// DELIVERED; anything else is rejected here.
func (ds *DeliveryService) UpdateStatus(ctx context.Context, orderNumber, courier string, to domain.ParentStatus) (domain.ParentOrderRecord, error) {
	switch to {
	case domain.ParentOutForDelivery:
		before, after, err := ds.db.MarkOutForDeliveryTx(ctx, orderNumber, courier)
		if err != nil {
			return domain.ParentOrderRecord{}, err
		}
		ds.publishUpdate(ctx, before, after)
		ds.lg.Info("order_picked_up", map[string]any{"order_number": orderNumber, "courier": courier})
		return after, nil

	case domain.ParentDelivered:
		res, err := ds.db.MarkDeliveredTx(ctx, orderNumber, courier)
		if err != nil {
			return domain.ParentOrderRecord{}, err
		}
		ds.publishUpdate(ctx, res.ParentBefore, res.ParentAfter)
		ds.lg.Info("order_delivered", map[string]any{
			"order_number": orderNumber,
			"courier":      courier,
			"final_status": res.ParentNew,
		})
		return res.ParentAfter, nil

	default:
		return domain.ParentOrderRecord{}, fmt.Errorf("%w: couriers may only set OUT_FOR_DELIVERY or DELIVERED, got %q",
			repository.ErrWrongParentState, to)
	}
}

func (ds *DeliveryService) publishUpdate(ctx context.Context, before, after domain.ParentOrderRecord) {
	ds.queue.Apply(domain.ChangeEvent{EventType: domain.EventUpdate, New: &after, Old: &before})
	if err := ds.feed.PublishChange(ctx, domain.ChangeEvent{
		EventType: domain.EventUpdate,
		New:       &after,
		Old:       &before,
	}); err != nil {
		ds.lg.Error("change_event_publish_failed", err, map[string]any{"order_number": after.OrderNumber})
	}
}

func (ds *DeliveryService) CourierOnline(ctx context.Context, name string) error {
	return ds.db.RegisterCourier(ctx, name)
}

func (ds *DeliveryService) CourierOffline(ctx context.Context, name string) error {
	return ds.db.SetCourierOffline(ctx, name)
}

func (ds *DeliveryService) CourierHeartbeat(ctx context.Context, name string) error {
	return ds.db.Heartbeat(ctx, name)
}
