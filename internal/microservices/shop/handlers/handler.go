package handlers

import "marketplace-system/internal/microservices/shop/service"

type Handler struct {
	ShopHandler *ShopHandler
}

func New(svc *service.Service) *Handler {
	return &Handler{ShopHandler: NewShopHandler(svc.ShopService)}
}
