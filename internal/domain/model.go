package domain

import "time"

// ParentOrder is one checkout spanning potentially several shops.
type ParentOrder struct {
	ID               string
	OrderNumber      string
	CustomerName     string
	DeliveryAddress  string
	Status           ParentStatus
	DeliveryUserID   *string // nil means unassigned
	Subtotal         float64
	TotalDeliveryFee float64
	Total            float64
	RouteKm          *float64
	PickupSequence   []string // shop ids in pickup order, routing snapshot
	CreatedAt        time.Time
	UpdatedAt        time.Time

	SubOrders []SubOrder
}

// SubOrder is one shop's portion of a parent order (the `orders` table).
type SubOrder struct {
	ID            string
	OrderNumber   string
	ParentOrderID string
	ShopID        string
	Status        SubStatus
	Subtotal      float64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []OrderItem
}

type OrderItem struct {
	ID       int64
	Name     string
	Quantity int
	Price    float64
}

// Courier is a registered delivery user.
type Courier struct {
	ID              int64
	Name            string
	Status          string // "online" | "offline"
	OrdersDelivered int
	LastSeen        time.Time
}
