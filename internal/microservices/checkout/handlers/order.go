package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketplace-system/internal/common/httpx"
	"marketplace-system/internal/microservices/checkout/dto"
	"marketplace-system/internal/microservices/checkout/repository"
	"marketplace-system/internal/microservices/checkout/service"
)

type OrderHandler struct {
	service service.CheckoutServiceInterface
}

func NewOrderHandler(svc service.CheckoutServiceInterface) *OrderHandler {
	return &OrderHandler{service: svc}
}

func (h *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON")
		return
	}
	resp, err := h.service.AddOrder(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			httpx.WriteProblem(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("order_number")
	p, err := h.service.GetOrder(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	subs := make([]map[string]any, 0, len(p.SubOrders))
	for _, so := range p.SubOrders {
		subs = append(subs, map[string]any{
			"order_number": so.OrderNumber,
			"shop_id":      so.ShopID,
			"status":       so.Status,
			"subtotal":     so.Subtotal,
			"updated_at":   so.UpdatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_number":       p.OrderNumber,
		"customer_name":      p.CustomerName,
		"delivery_address":   p.DeliveryAddress,
		"status":             p.Status,
		"delivery_user_id":   p.DeliveryUserID,
		"subtotal":           p.Subtotal,
		"total_delivery_fee": p.TotalDeliveryFee,
		"total":              p.Total,
		"pickup_sequence":    p.PickupSequence,
		"created_at":         p.CreatedAt,
		"updated_at":         p.UpdatedAt,
		"sub_orders":         subs,
	})
}
