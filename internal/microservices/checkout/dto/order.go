package dto

type CreateOrderItem struct {
	ShopID   string  `json:"shop_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type CreateOrderRequest struct {
	CustomerName    string            `json:"customer_name"`
	DeliveryAddress string            `json:"delivery_address"`
	Items           []CreateOrderItem `json:"items"`
}

type SubOrderSummary struct {
	OrderNumber string  `json:"order_number"`
	ShopID      string  `json:"shop_id"`
	Status      string  `json:"status"`
	Subtotal    float64 `json:"subtotal"`
}

type CreateOrderResponse struct {
	OrderNumber      string            `json:"order_number"`
	Status           string            `json:"status"`
	Subtotal         float64           `json:"subtotal"`
	TotalDeliveryFee float64           `json:"total_delivery_fee"`
	Total            float64           `json:"total"`
	SubOrders        []SubOrderSummary `json:"sub_orders"`
}
