package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketplace-system/internal/common/httpx"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/microservices/shop/repository"
	"marketplace-system/internal/microservices/shop/service"
)

type ShopHandler struct {
	service service.ShopServiceInterface
}

func NewShopHandler(svc service.ShopServiceInterface) *ShopHandler {
	return &ShopHandler{service: svc}
}

func (h *ShopHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("shop_id")
	limit := httpx.AtoiDefault(r.URL.Query().Get("limit"), 50)
	offset := httpx.AtoiDefault(r.URL.Query().Get("offset"), 0)

	orders, err := h.service.ListOrders(r.Context(), shopID, limit, offset)
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	out := make([]map[string]any, 0, len(orders))
	for _, so := range orders {
		out = append(out, map[string]any{
			"order_number": so.OrderNumber,
			"status":       so.Status,
			"subtotal":     so.Subtotal,
			"created_at":   so.CreatedAt,
			"updated_at":   so.UpdatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"shop_id": shopID, "orders": out})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *ShopHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("shop_id")
	orderNumber := r.PathValue("order_number")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON")
		return
	}

	res, err := h.service.UpdateStatus(r.Context(), shopID, orderNumber, domain.SubStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found for this shop")
		case errors.Is(err, repository.ErrInvalidTransition):
			httpx.WriteProblem(w, http.StatusConflict, "invalid_transition", err.Error())
		case errors.Is(err, repository.ErrParentClosed):
			httpx.WriteProblem(w, http.StatusConflict, "parent_closed", "parent order is in a terminal state")
		default:
			httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_number":      res.SubOrderNumber,
		"old_status":        res.SubOld,
		"new_status":        res.SubNew,
		"parent_old_status": res.ParentOld,
		"parent_new_status": res.ParentNew,
	})
}
