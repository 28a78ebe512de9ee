package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/microservices/shop/repository"
)

type mockShopRepo struct {
	listFunc   func(ctx context.Context, shopID string, limit, offset int) ([]domain.SubOrder, error)
	updateFunc func(ctx context.Context, shopID, subOrderNumber string, to domain.SubStatus, changedBy string) (repository.TransitionResult, error)
}

func (m *mockShopRepo) ListShopOrders(ctx context.Context, shopID string, limit, offset int) ([]domain.SubOrder, error) {
	return m.listFunc(ctx, shopID, limit, offset)
}
func (m *mockShopRepo) UpdateSubOrderStatusTx(ctx context.Context, shopID, subOrderNumber string, to domain.SubStatus, changedBy string) (repository.TransitionResult, error) {
	return m.updateFunc(ctx, shopID, subOrderNumber, to, changedBy)
}

type mockShopFeed struct {
	events  []domain.ChangeEvent
	signals []domain.ReadyForPickupSignal
}

func (m *mockShopFeed) PublishChange(ctx context.Context, ev domain.ChangeEvent) error {
	m.events = append(m.events, ev)
	return nil
}
func (m *mockShopFeed) PublishReadySignal(ctx context.Context, sig domain.ReadyForPickupSignal) error {
	m.signals = append(m.signals, sig)
	return nil
}

func transitionResult(subNew domain.SubStatus, parentOld, parentNew domain.ParentStatus, assigned *string) repository.TransitionResult {
	now := time.Now().UTC()
	before := domain.ParentOrderRecord{
		ID:             "p1",
		OrderNumber:    "ORD_20260829_001",
		Status:         parentOld,
		DeliveryUserID: assigned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	after := before
	after.Status = parentNew
	return repository.TransitionResult{
		SubOrderNumber: "ORD_20260829_001-S1",
		ShopID:         "bakery",
		SubOld:         domain.SubPreparing,
		SubNew:         subNew,
		ParentOld:      parentOld,
		ParentNew:      parentNew,
		ParentBefore:   before,
		ParentAfter:    after,
	}
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	repo := &mockShopRepo{}
	feed := &mockShopFeed{}
	svc := NewShopService(repo, feed, logger.New("shop-test"))

	_, err := svc.UpdateStatus(context.Background(), "bakery", "ORD_20260829_001-S1", domain.SubStatus("COOKING"))
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	assert.Empty(t, feed.events)
}

func TestUpdateStatus_PublishesParentUpdate(t *testing.T) {
	repo := &mockShopRepo{
		updateFunc: func(ctx context.Context, shopID, n string, to domain.SubStatus, by string) (repository.TransitionResult, error) {
			assert.Equal(t, "shop:bakery", by)
			return transitionResult(domain.SubConfirmed, domain.ParentPlaced, domain.ParentProcessing, nil), nil
		},
	}
	feed := &mockShopFeed{}
	svc := NewShopService(repo, feed, logger.New("shop-test"))

	res, err := svc.UpdateStatus(context.Background(), "bakery", "ORD_20260829_001-S1", domain.SubConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.ParentProcessing, res.ParentNew)

	require.Len(t, feed.events, 1)
	ev := feed.events[0]
	assert.Equal(t, domain.EventUpdate, ev.EventType)
	require.NotNil(t, ev.Old)
	require.NotNil(t, ev.New)
	assert.Equal(t, domain.ParentPlaced, ev.Old.Status)
	assert.Equal(t, domain.ParentProcessing, ev.New.Status)

	assert.Empty(t, feed.signals, "no push signal for a non-ready transition")
}

func TestUpdateStatus_ReadySignalWhenUnassigned(t *testing.T) {
	repo := &mockShopRepo{
		updateFunc: func(ctx context.Context, shopID, n string, to domain.SubStatus, by string) (repository.TransitionResult, error) {
			return transitionResult(domain.SubReadyForPickup, domain.ParentProcessing, domain.ParentReadyForPickup, nil), nil
		},
	}
	feed := &mockShopFeed{}
	svc := NewShopService(repo, feed, logger.New("shop-test"))

	_, err := svc.UpdateStatus(context.Background(), "bakery", "ORD_20260829_001-S1", domain.SubReadyForPickup)
	require.NoError(t, err)

	require.Len(t, feed.signals, 1)
	sig := feed.signals[0]
	assert.Equal(t, "ORD_20260829_001", sig.OrderNumber)
	assert.Equal(t, "bakery", sig.ShopID)
	assert.Equal(t, domain.ParentReadyForPickup, sig.ParentStatus)
}

func TestUpdateStatus_NoSignalWhenAssigned(t *testing.T) {
	courier := "courier123"
	repo := &mockShopRepo{
		updateFunc: func(ctx context.Context, shopID, n string, to domain.SubStatus, by string) (repository.TransitionResult, error) {
			return transitionResult(domain.SubReadyForPickup, domain.ParentPartiallyReady, domain.ParentReadyForPickup, &courier), nil
		},
	}
	feed := &mockShopFeed{}
	svc := NewShopService(repo, feed, logger.New("shop-test"))

	_, err := svc.UpdateStatus(context.Background(), "bakery", "ORD_20260829_001-S1", domain.SubReadyForPickup)
	require.NoError(t, err)

	assert.Len(t, feed.events, 1)
	assert.Empty(t, feed.signals, "assigned parent needs no courier push")
}

func TestUpdateStatus_RepoErrorPassedThrough(t *testing.T) {
	repo := &mockShopRepo{
		updateFunc: func(ctx context.Context, shopID, n string, to domain.SubStatus, by string) (repository.TransitionResult, error) {
			return repository.TransitionResult{}, repository.ErrParentClosed
		},
	}
	feed := &mockShopFeed{}
	svc := NewShopService(repo, feed, logger.New("shop-test"))

	_, err := svc.UpdateStatus(context.Background(), "bakery", "ORD_20260829_001-S1", domain.SubCancelled)
	assert.ErrorIs(t, err, repository.ErrParentClosed)
	assert.Empty(t, feed.events)
}
