package handlers

import "marketplace-system/internal/microservices/delivery/service"

type Handler struct {
	DeliveryHandler *DeliveryHandler
}

func New(svc *service.Service) *Handler {
	return &Handler{DeliveryHandler: NewDeliveryHandler(svc.DeliveryService)}
}
