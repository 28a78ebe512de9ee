package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/microservices/checkout/dto"
	"marketplace-system/internal/microservices/checkout/repository"
)

// DeliveryFeePerShop is the flat fee added for every shop a courier has
// to visit for the order.
const DeliveryFeePerShop = 5.0

var ErrValidation = errors.New("validation failed")

type FeedPublisher interface {
	PublishChange(ctx context.Context, ev domain.ChangeEvent) error
}

type CheckoutServiceInterface interface {
	AddOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.CreateOrderResponse, error)
	GetOrder(ctx context.Context, orderNumber string) (domain.ParentOrder, error)
}

type CheckoutService struct {
	db   repository.CheckoutRepositoryInterface
	feed FeedPublisher
	lg   *logger.Logger
}

func NewCheckoutService(db repository.CheckoutRepositoryInterface, feed FeedPublisher, lg *logger.Logger) *CheckoutService {
	return &CheckoutService{db: db, feed: feed, lg: lg}
}

// AddOrder creates one parent order fanned out into one sub-order per
// distinct shop in the cart, all in a single transaction, then publishes
// the INSERT change event.
func (cs *CheckoutService) AddOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.CreateOrderResponse, error) {
	if req.CustomerName == "" {
		return dto.CreateOrderResponse{}, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return dto.CreateOrderResponse{}, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for _, item := range req.Items {
		if item.ShopID == "" {
			return dto.CreateOrderResponse{}, fmt.Errorf("%w: missing shop id for item %s", ErrValidation, item.Name)
		}
		if item.Quantity <= 0 {
			return dto.CreateOrderResponse{}, fmt.Errorf("%w: invalid quantity for item %s", ErrValidation, item.Name)
		}
		if item.Price <= 0 {
			return dto.CreateOrderResponse{}, fmt.Errorf("%w: invalid price for item %s", ErrValidation, item.Name)
		}
	}

	// group the cart by shop, keeping first-seen shop order for the
	// pickup sequence snapshot
	byShop := make(map[string][]dto.CreateOrderItem)
	var shopOrder []string
	for _, item := range req.Items {
		if _, seen := byShop[item.ShopID]; !seen {
			shopOrder = append(shopOrder, item.ShopID)
		}
		byShop[item.ShopID] = append(byShop[item.ShopID], item)
	}

	seq, err := cs.db.NextOrderSequence(ctx)
	if err != nil {
		return dto.CreateOrderResponse{}, fmt.Errorf("next order sequence: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD_%s_%03d", time.Now().UTC().Format("20060102"), seq)

	parent := domain.ParentOrder{
		ID:              uuid.NewString(),
		OrderNumber:     orderNumber,
		CustomerName:    req.CustomerName,
		DeliveryAddress: req.DeliveryAddress,
		Status:          domain.ParentPlaced,
		PickupSequence:  shopOrder,
	}

	for i, shopID := range shopOrder {
		sub := domain.SubOrder{
			ID:          uuid.NewString(),
			OrderNumber: fmt.Sprintf("%s-S%d", orderNumber, i+1),
			ShopID:      shopID,
			Status:      domain.SubPlaced,
		}
		for _, item := range byShop[shopID] {
			sub.Items = append(sub.Items, domain.OrderItem{
				Name:     item.Name,
				Quantity: item.Quantity,
				Price:    item.Price,
			})
			sub.Subtotal += float64(item.Quantity) * item.Price
		}
		parent.Subtotal += sub.Subtotal
		parent.SubOrders = append(parent.SubOrders, sub)
	}
	parent.TotalDeliveryFee = DeliveryFeePerShop * float64(len(shopOrder))
	parent.Total = parent.Subtotal + parent.TotalDeliveryFee

	if err := cs.db.CreateParentOrderTx(ctx, &parent); err != nil {
		return dto.CreateOrderResponse{}, fmt.Errorf("save order: %w", err)
	}

	if err := cs.feed.PublishChange(ctx, domain.ChangeEvent{
		EventType: domain.EventInsert,
		New:       parent.Record(),
	}); err != nil {
		// the row is committed; consumers recover via snapshot resync
		cs.lg.Error("change_event_publish_failed", err, map[string]any{"order_number": orderNumber})
	}

	cs.lg.Info("order_created", map[string]any{
		"order_number": orderNumber,
		"shops":        len(shopOrder),
		"total":        parent.Total,
	})

	resp := dto.CreateOrderResponse{
		OrderNumber:      orderNumber,
		Status:           string(parent.Status),
		Subtotal:         parent.Subtotal,
		TotalDeliveryFee: parent.TotalDeliveryFee,
		Total:            parent.Total,
	}
	for _, so := range parent.SubOrders {
		resp.SubOrders = append(resp.SubOrders, dto.SubOrderSummary{
			OrderNumber: so.OrderNumber,
			ShopID:      so.ShopID,
			Status:      string(so.Status),
			Subtotal:    so.Subtotal,
		})
	}
	return resp, nil
}

func (cs *CheckoutService) GetOrder(ctx context.Context, orderNumber string) (domain.ParentOrder, error) {
	return cs.db.GetParentOrder(ctx, orderNumber)
}
