package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/livequeue"
	"marketplace-system/internal/microservices/delivery/repository"
)

type mockDeliveryRepo struct {
	snapshotFunc func(ctx context.Context) ([]domain.ParentOrderRecord, error)
	claimFunc    func(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error)
	pickupFunc   func(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error)
	deliverFunc  func(ctx context.Context, orderNumber, courier string) (repository.DeliveredResult, error)
	registered   []string
	offline      []string
}

func (m *mockDeliveryRepo) SnapshotReadyUnassigned(ctx context.Context) ([]domain.ParentOrderRecord, error) {
	return m.snapshotFunc(ctx)
}
func (m *mockDeliveryRepo) ClaimTx(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
	return m.claimFunc(ctx, orderNumber, courier)
}
func (m *mockDeliveryRepo) MarkOutForDeliveryTx(ctx context.Context, orderNumber, courier string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
	return m.pickupFunc(ctx, orderNumber, courier)
}
func (m *mockDeliveryRepo) MarkDeliveredTx(ctx context.Context, orderNumber, courier string) (repository.DeliveredResult, error) {
	return m.deliverFunc(ctx, orderNumber, courier)
}
func (m *mockDeliveryRepo) RegisterCourier(ctx context.Context, name string) error {
	m.registered = append(m.registered, name)
	return nil
}
func (m *mockDeliveryRepo) SetCourierOffline(ctx context.Context, name string) error {
	m.offline = append(m.offline, name)
	return nil
}
func (m *mockDeliveryRepo) Heartbeat(ctx context.Context, name string) error { return nil }

type mockDeliveryFeed struct {
	events []domain.ChangeEvent
}

func (m *mockDeliveryFeed) PublishChange(ctx context.Context, ev domain.ChangeEvent) error {
	m.events = append(m.events, ev)
	return nil
}

func readyRecord(id, number string) domain.ParentOrderRecord {
	now := time.Now().UTC()
	return domain.ParentOrderRecord{
		ID:          id,
		OrderNumber: number,
		Status:      domain.ParentReadyForPickup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestClaim_SuccessRemovesFromQueueAndPublishes(t *testing.T) {
	courier := "courier123"
	before := readyRecord("p1", "ORD_20260829_001")
	after := before
	after.DeliveryUserID = &courier

	repo := &mockDeliveryRepo{
		claimFunc: func(ctx context.Context, orderNumber, c string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
			assert.Equal(t, "ORD_20260829_001", orderNumber)
			assert.Equal(t, courier, c)
			return before, after, nil
		},
	}
	feed := &mockDeliveryFeed{}
	queue := livequeue.NewProjection()
	queue.Seed([]domain.ParentOrderRecord{before})
	svc := NewDeliveryService(repo, feed, queue, logger.New("delivery-test"))

	rec, err := svc.Claim(context.Background(), "ORD_20260829_001", courier)
	require.NoError(t, err)
	require.NotNil(t, rec.DeliveryUserID)
	assert.Equal(t, courier, *rec.DeliveryUserID)

	assert.Equal(t, 0, queue.Len(), "claimed order leaves the local queue immediately")
	require.Len(t, feed.events, 1)
	assert.Equal(t, domain.EventUpdate, feed.events[0].EventType)
}

func TestClaim_LostRaceIsOrderTaken(t *testing.T) {
	repo := &mockDeliveryRepo{
		claimFunc: func(ctx context.Context, orderNumber, c string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
			return domain.ParentOrderRecord{}, domain.ParentOrderRecord{}, repository.ErrOrderTaken
		},
	}
	feed := &mockDeliveryFeed{}
	svc := NewDeliveryService(repo, feed, livequeue.NewProjection(), logger.New("delivery-test"))

	_, err := svc.Claim(context.Background(), "ORD_20260829_001", "courier123")
	assert.ErrorIs(t, err, repository.ErrOrderTaken)
	assert.Empty(t, feed.events)
}

func TestUpdateStatus_OutForDelivery(t *testing.T) {
	courier := "courier123"
	before := readyRecord("p1", "ORD_20260829_001")
	before.DeliveryUserID = &courier
	after := before
	after.Status = domain.ParentOutForDelivery

	repo := &mockDeliveryRepo{
		pickupFunc: func(ctx context.Context, orderNumber, c string) (domain.ParentOrderRecord, domain.ParentOrderRecord, error) {
			return before, after, nil
		},
	}
	feed := &mockDeliveryFeed{}
	svc := NewDeliveryService(repo, feed, livequeue.NewProjection(), logger.New("delivery-test"))

	rec, err := svc.UpdateStatus(context.Background(), "ORD_20260829_001", courier, domain.ParentOutForDelivery)
	require.NoError(t, err)
	assert.Equal(t, domain.ParentOutForDelivery, rec.Status)
	require.Len(t, feed.events, 1)
}

func TestUpdateStatus_DeliveredCascade(t *testing.T) {
	courier := "courier123"
	before := readyRecord("p1", "ORD_20260829_001")
	before.Status = domain.ParentOutForDelivery
	before.DeliveryUserID = &courier
	after := before
	after.Status = domain.ParentPartiallyCancelled

	repo := &mockDeliveryRepo{
		deliverFunc: func(ctx context.Context, orderNumber, c string) (repository.DeliveredResult, error) {
			return repository.DeliveredResult{
				ParentOld:    domain.ParentOutForDelivery,
				ParentNew:    domain.ParentPartiallyCancelled,
				ParentBefore: before,
				ParentAfter:  after,
			}, nil
		},
	}
	feed := &mockDeliveryFeed{}
	svc := NewDeliveryService(repo, feed, livequeue.NewProjection(), logger.New("delivery-test"))

	rec, err := svc.UpdateStatus(context.Background(), "ORD_20260829_001", courier, domain.ParentDelivered)
	require.NoError(t, err)
	// one shop had cancelled its portion, so the closed order is partial
	assert.Equal(t, domain.ParentPartiallyCancelled, rec.Status)
	require.Len(t, feed.events, 1)
}

func TestUpdateStatus_RejectsNonCourierStatuses(t *testing.T) {
	repo := &mockDeliveryRepo{}
	feed := &mockDeliveryFeed{}
	svc := NewDeliveryService(repo, feed, livequeue.NewProjection(), logger.New("delivery-test"))

	for _, st := range []domain.ParentStatus{domain.ParentPlaced, domain.ParentReadyForPickup, domain.ParentCancelled} {
		_, err := svc.UpdateStatus(context.Background(), "ORD_20260829_001", "courier123", st)
		assert.ErrorIs(t, err, repository.ErrWrongParentState, "status %s", st)
	}
	assert.Empty(t, feed.events)
}

func TestQueue_ReturnsProjectionFIFO(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	older := readyRecord("p1", "ORD_20260829_001")
	older.CreatedAt = base
	newer := readyRecord("p2", "ORD_20260829_002")
	newer.CreatedAt = base.Add(time.Minute)

	queue := livequeue.NewProjection()
	queue.Seed([]domain.ParentOrderRecord{newer, older})
	svc := NewDeliveryService(&mockDeliveryRepo{}, &mockDeliveryFeed{}, queue, logger.New("delivery-test"))

	entries := svc.Queue()
	require.Len(t, entries, 2)
	assert.Equal(t, "ORD_20260829_001", entries[0].OrderNumber)
}

func TestCourierRegistry(t *testing.T) {
	repo := &mockDeliveryRepo{}
	svc := NewDeliveryService(repo, &mockDeliveryFeed{}, livequeue.NewProjection(), logger.New("delivery-test"))

	require.NoError(t, svc.CourierOnline(context.Background(), "courier123"))
	require.NoError(t, svc.CourierOffline(context.Background(), "courier123"))
	assert.Equal(t, []string{"courier123"}, repo.registered)
	assert.Equal(t, []string{"courier123"}, repo.offline)
}
