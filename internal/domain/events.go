package domain

import "time"

// EventType classifies a change-feed message for a single row.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ParentOrderRecord is the wire shape of a parent-order row inside a
// change event. Only the columns the live queue and notifications need.
type ParentOrderRecord struct {
	ID             string       `json:"id"`
	OrderNumber    string       `json:"order_number"`
	CustomerName   string       `json:"customer_name"`
	Status         ParentStatus `json:"status"`
	DeliveryUserID *string      `json:"delivery_user_id"`
	Total          float64      `json:"total"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ChangeEvent is one message on the parent-orders change feed: the row
// before and after the mutation. Old is nil on INSERT, New on DELETE.
type ChangeEvent struct {
	EventType EventType          `json:"event_type"`
	New       *ParentOrderRecord `json:"new,omitempty"`
	Old       *ParentOrderRecord `json:"old,omitempty"`
}

// Record returns the parent-order snapshot used as the feed payload.
func (p *ParentOrder) Record() *ParentOrderRecord {
	return &ParentOrderRecord{
		ID:             p.ID,
		OrderNumber:    p.OrderNumber,
		CustomerName:   p.CustomerName,
		Status:         p.Status,
		DeliveryUserID: p.DeliveryUserID,
		Total:          p.Total,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ReadyForPickupSignal is published when a sub-order reaches
// READY_FOR_PICKUP and its parent has no assigned courier; the
// notification subscriber fans it out to opted-in couriers.
type ReadyForPickupSignal struct {
	OrderNumber    string       `json:"order_number"`
	SubOrderNumber string       `json:"sub_order_number"`
	ShopID         string       `json:"shop_id"`
	ParentStatus   ParentStatus `json:"parent_status"`
	Timestamp      time.Time    `json:"timestamp"`
}
