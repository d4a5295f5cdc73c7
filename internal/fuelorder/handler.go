package fuelorder

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/transport"
	"github.com/flightbase/fbo-management/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateOrder(customerID int64, dto CreateOrderDTO) (*FuelOrder, error)
	GetOrderByID(id int64) (*FuelOrder, error)
	GetCustomerOrders(customerID int64, limit, offset int) ([]*FuelOrder, error)
	GetAllOrders(limit, offset int) ([]*FuelOrder, error)
	StartOrder(orderID int64) error
	CompleteOrder(orderID int64) error
	CancelOrder(orderID int64) error
	GetReceipt(orderID int64) (*Receipt, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateOrder: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.Service.CreateOrder(userID, dto)
	if err != nil {
		h.Logger.Error("CreateOrder: service error", "error", err, "customer_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateOrder: fuel order created",
		"order_id", order.ID,
		"customer_id", userID,
		"fuel_type", order.FuelType)

	h.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.Service.GetOrderByID(orderID)
	if err != nil {
		h.Logger.Error("GetOrder: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := h.pagination(r)
	orders, err := h.Service.GetCustomerOrders(userID, limit, offset)
	if err != nil {
		h.Logger.Error("GetMyOrders: service error", "error", err, "customer_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.pagination(r)
	orders, err := h.Service.GetAllOrders(limit, offset)
	if err != nil {
		h.Logger.Error("GetAllOrders: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) StartOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Service.StartOrder(orderID); err != nil {
		h.Logger.Error("StartOrder: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": OrderStatusInProgress})
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Service.CompleteOrder(orderID); err != nil {
		h.Logger.Error("CompleteOrder: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": OrderStatusCompleted})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Service.CancelOrder(orderID); err != nil {
		h.Logger.Error("CancelOrder: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": OrderStatusCancelled})
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDParam(w, r)
	if !ok {
		return
	}

	receipt, err := h.Service.GetReceipt(orderID)
	if err != nil {
		h.Logger.Error("GetReceipt: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || orderID <= 0 {
		h.Logger.Error("invalid fuel order ID", "id", raw)
		h.WriteError(w, http.StatusBadRequest, "invalid order ID")
		return 0, false
	}
	return orderID, true
}

func (h *Handler) pagination(r *http.Request) (int, int) {
	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
