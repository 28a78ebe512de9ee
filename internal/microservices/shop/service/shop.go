package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/microservices/shop/repository"
)

type FeedPublisher interface {
	PublishChange(ctx context.Context, ev domain.ChangeEvent) error
	PublishReadySignal(ctx context.Context, sig domain.ReadyForPickupSignal) error
}

type ShopServiceInterface interface {
	ListOrders(ctx context.Context, shopID string, limit, offset int) ([]domain.SubOrder, error)
	UpdateStatus(ctx context.Context, shopID, subOrderNumber string, to domain.SubStatus) (repository.TransitionResult, error)
}

type ShopService struct {
	db   repository.ShopRepositoryInterface
	feed FeedPublisher
	lg   *logger.Logger
}

func NewShopService(db repository.ShopRepositoryInterface, feed FeedPublisher, lg *logger.Logger) *ShopService {
	return &ShopService{db: db, feed: feed, lg: lg}
}

func (ss *ShopService) ListOrders(ctx context.Context, shopID string, limit, offset int) ([]domain.SubOrder, error) {
	return ss.db.ListShopOrders(ctx, shopID, limit, offset)
}

// UpdateStatus transitions a shop's sub-order. The repository runs the
// transition and the parent derivation atomically; afterwards the parent
// UPDATE event goes on the change feed, and the courier-push signal fires
// when the sub-order became ready on a still-unassigned parent.
func (ss *ShopService) UpdateStatus(ctx context.Context, shopID, subOrderNumber string, to domain.SubStatus) (repository.TransitionResult, error) {
	if !domain.ValidSubStatus(to) {
		return repository.TransitionResult{}, fmt.Errorf("%w: unknown status %q", repository.ErrInvalidTransition, to)
	}

	res, err := ss.db.UpdateSubOrderStatusTx(ctx, shopID, subOrderNumber, to, "shop:"+shopID)
	if err != nil {
		return repository.TransitionResult{}, err
	}

	ss.lg.Info("sub_order_status_changed", map[string]any{
		"sub_order_number": res.SubOrderNumber,
		"shop_id":          shopID,
		"old_status":       res.SubOld,
		"new_status":       res.SubNew,
		"parent_status":    res.ParentNew,
	})

	before := res.ParentBefore
	after := res.ParentAfter
	if err := ss.feed.PublishChange(ctx, domain.ChangeEvent{
		EventType: domain.EventUpdate,
		New:       &after,
		Old:       &before,
	}); err != nil {
		// committed state is authoritative; projections heal on resync
		ss.lg.Error("change_event_publish_failed", err, map[string]any{"order_number": after.OrderNumber})
	}

	if res.SubNew == domain.SubReadyForPickup && after.DeliveryUserID == nil {
		sig := domain.ReadyForPickupSignal{
			OrderNumber:    after.OrderNumber,
			SubOrderNumber: res.SubOrderNumber,
			ShopID:         shopID,
			ParentStatus:   res.ParentNew,
			Timestamp:      time.Now().UTC(),
		}
		if err := ss.feed.PublishReadySignal(ctx, sig); err != nil {
			ss.lg.Error("ready_signal_publish_failed", err, map[string]any{"order_number": after.OrderNumber})
		}
	}

	return res, nil
}
