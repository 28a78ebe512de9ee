package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketplace-system/internal/common/httpx"
	"marketplace-system/internal/domain"
	"marketplace-system/internal/microservices/delivery/repository"
	"marketplace-system/internal/microservices/delivery/service"
)

type DeliveryHandler struct {
	service service.DeliveryServiceInterface
}

func NewDeliveryHandler(svc service.DeliveryServiceInterface) *DeliveryHandler {
	return &DeliveryHandler{service: svc}
}

func (h *DeliveryHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	entries := h.service.Queue()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"order_number":  e.OrderNumber,
			"customer_name": e.CustomerName,
			"total":         e.Total,
			"created_at":    e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": out, "count": len(out)})
}

type courierRequest struct {
	Courier string `json:"courier"`
}

func (h *DeliveryHandler) Claim(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("order_number")
	var req courierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Courier == "" {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", "courier is required")
		return
	}

	rec, err := h.service.Claim(r.Context(), orderNumber, req.Courier)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
		case errors.Is(err, repository.ErrOrderTaken):
			// lost race, not a failure: the courier just refreshes
			httpx.WriteProblem(w, http.StatusConflict, "order_taken", "order no longer available")
		default:
			httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_number":     rec.OrderNumber,
		"status":           rec.Status,
		"delivery_user_id": rec.DeliveryUserID,
	})
}

type courierStatusRequest struct {
	Courier string `json:"courier"`
	Status  string `json:"status"`
}

func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("order_number")
	var req courierStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Courier == "" {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", "courier and status are required")
		return
	}

	rec, err := h.service.UpdateStatus(r.Context(), orderNumber, req.Courier, domain.ParentStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
		case errors.Is(err, repository.ErrNotAssigned):
			httpx.WriteProblem(w, http.StatusForbidden, "not_assigned", "order not assigned to this courier")
		case errors.Is(err, repository.ErrWrongParentState):
			httpx.WriteProblem(w, http.StatusConflict, "wrong_state", err.Error())
		default:
			httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_number": rec.OrderNumber,
		"status":       rec.Status,
	})
}

func (h *DeliveryHandler) CourierOnline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.service.CourierOnline(r.Context(), name); err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courier": name, "status": "online"})
}

func (h *DeliveryHandler) CourierHeartbeat(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.service.CourierHeartbeat(r.Context(), name); err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courier": name})
}

func (h *DeliveryHandler) CourierOffline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.service.CourierOffline(r.Context(), name); err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"courier": name, "status": "offline"})
}
