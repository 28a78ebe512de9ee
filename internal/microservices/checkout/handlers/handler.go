package handlers

import "marketplace-system/internal/microservices/checkout/service"

type Handler struct {
	OrderHandler *OrderHandler
}

func New(svc *service.Service) *Handler {
	return &Handler{OrderHandler: NewOrderHandler(svc.CheckoutService)}
}

