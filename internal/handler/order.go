package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xozmart/order-service/internal/catalog"
	"github.com/xozmart/order-service/internal/metrics"
	"github.com/xozmart/order-service/internal/order"
	"github.com/xozmart/order-service/internal/ratelimit"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	svc     order.Service
	limiter *ratelimit.Limiter
}

func NewOrderHandler(svc order.Service, limiter *ratelimit.Limiter) *OrderHandler {
	return &OrderHandler{svc: svc, limiter: limiter}
}

type orderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	TotalAmount int64             `json:"total_amount"`
	Status      order.OrderStatus `json:"status"`
}

type createOrderResponse struct {
	Success bool         `json:"success"`
	Order   orderSummary `json:"order"`
}

type validationFailedResponse struct {
	Error   string             `json:"error"`
	Details []order.FieldError `json:"details"`
}

// CreateOrder is the order submission endpoint: rate limit, validation,
// catalog integrity check, persistence, best-effort notification.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	identity := clientIdentity(r)
	if !h.limiter.Allow(r.Context(), identity) {
		log.Warn().Str("identity", identity).Msg("handler: rate limit exceeded")
		metrics.OrdersRejectedTotal.WithLabelValues("rate_limit").Inc()
		respondWithError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues("validation").Inc()
		respondWithJSON(w, http.StatusBadRequest, validationFailedResponse{
			Error:   "Validation failed",
			Details: []order.FieldError{{Field: "root", Message: "Invalid request body"}},
		})
		return
	}

	input, fieldErrs := order.ValidateOrderInput(payload)
	if fieldErrs != nil {
		log.Warn().Int("violations", len(fieldErrs)).Msg("handler: order validation failed")
		metrics.OrdersRejectedTotal.WithLabelValues("validation").Inc()
		respondWithJSON(w, http.StatusBadRequest, validationFailedResponse{
			Error:   "Validation failed",
			Details: fieldErrs,
		})
		return
	}

	ord, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		var integrityErr *catalog.IntegrityError
		switch {
		case errors.As(err, &integrityErr):
			respondWithError(w, http.StatusBadRequest, integrityErr.Message)
		case errors.Is(err, order.ErrCreateOrder):
			respondWithError(w, http.StatusInternalServerError, "Failed to create order")
		case errors.Is(err, order.ErrCreateOrderItems):
			respondWithError(w, http.StatusInternalServerError, "Failed to create order items")
		default:
			log.Error().Err(err).Msg("handler: unexpected error creating order")
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, createOrderResponse{
		Success: true,
		Order: orderSummary{
			ID:          ord.ID,
			OrderNumber: ord.OrderNumber,
			TotalAmount: ord.TotalAmount,
			Status:      ord.Status,
		},
	})
}

// GetOrderByID returns a single order with its items.
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	ord, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Error().Err(err).Msg("handler: failed to get order")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

// ListOrders returns orders newest first, optionally filtered by status.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := order.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.svc.ListOrders(r.Context(), status)
	if err != nil {
		if errors.Is(err, order.ErrInvalidStatus) {
			respondWithError(w, http.StatusBadRequest, "Invalid order status")
			return
		}
		log.Error().Err(err).Msg("handler: failed to list orders")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type updateStatusRequest struct {
	Status order.OrderStatus `json:"status"`
}

// UpdateOrderStatus moves an order through the back-office lifecycle.
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = h.svc.UpdateOrderStatus(r.Context(), id, req.Status)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, order.ErrOrderNotFound):
		respondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, order.ErrInvalidStatus):
		respondWithError(w, http.StatusBadRequest, "Invalid order status")
	case errors.Is(err, order.ErrInvalidStatusTransition):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("handler: failed to update order status")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
