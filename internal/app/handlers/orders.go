package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/toff-shop/internal/service"
	"github.com/linemk/toff-shop/internal/storage"
)

type OrderManager interface {
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus, trackingNumber string) (*models.Order, error)
}

type UpdateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"max=100"`
}

// OrdersHandler обрабатывает GET /api/orders — заказы текущего пользователя
func OrdersHandler(log *slog.Logger, orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}

		list, err := orders.ListOrders(r.Context(), userID)
		if err != nil {
			writeError(logger, w, http.StatusInternalServerError, "Failed to list orders", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusOK, list)
	}
}

// OrderHandler обрабатывает GET /api/orders/{id}
func OrderHandler(log *slog.Logger, orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		orderID, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}

		order, err := orders.GetOrder(r.Context(), userID, jwtmiddleware.IsAdmin(r.Context()), orderID)
		if err != nil {
			writeOrderError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

// UpdateOrderStatusHandler обрабатывает PATCH /api/orders/{id}/status (только для сотрудников)
func UpdateOrderStatusHandler(log *slog.Logger, orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		order, err := orders.UpdateStatus(r.Context(), orderID, models.OrderStatus(req.Status), req.TrackingNumber)
		if err != nil {
			writeOrderError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

func writeOrderError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		writeError(log, w, http.StatusNotFound, "Order not found", codeNotFound, nil)
	case errors.Is(err, service.ErrOrderAccessDenied):
		writeError(log, w, http.StatusForbidden, "Access denied", codeForbidden, nil)
	case errors.Is(err, service.ErrUnknownStatus):
		writeError(log, w, http.StatusBadRequest, "Unknown order status", codeInvalidInput, models.OrderStatuses)
	case errors.Is(err, storage.ErrRowLocked):
		writeError(log, w, http.StatusConflict, "Order is being updated", codeConflict, nil)
	default:
		log.Error("order operation failed", slog.Any("error", err))
		writeError(log, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
	}
}
