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

type CartManager interface {
	GetCart(ctx context.Context, userID int64) (*service.CartView, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int, size, color string) (*models.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
}

type AddCartItemRequest struct {
	ProductID     int64  `json:"product_id" validate:"required,gt=0"`
	Quantity      int    `json:"quantity" validate:"min=1,max=1000"`
	SelectedSize  string `json:"selected_size" validate:"max=50"`
	SelectedColor string `json:"selected_color" validate:"max=50"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1,max=1000"`
}

func CartHandler(log *slog.Logger, carts CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CartHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}

		cart, err := carts.GetCart(r.Context(), userID)
		if err != nil {
			writeCartError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, cart)
	}
}

func AddCartItemHandler(log *slog.Logger, carts CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AddCartItemHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		var req AddCartItemRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		item, err := carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity, req.SelectedSize, req.SelectedColor)
		if err != nil {
			writeCartError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, item)
	}
}

func UpdateCartItemHandler(log *slog.Logger, carts CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.UpdateCartItemHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		itemID, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}
		var req UpdateCartItemRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		if err := carts.UpdateItem(r.Context(), userID, itemID, req.Quantity); err != nil {
			writeCartError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RemoveCartItemHandler(log *slog.Logger, carts CartManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.RemoveCartItemHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		itemID, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}

		if err := carts.RemoveItem(r.Context(), userID, itemID); err != nil {
			writeCartError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeCartError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		writeError(log, w, http.StatusBadRequest, "Invalid quantity", codeInvalidInput, nil)
	case errors.Is(err, storage.ErrProductNotFound), errors.Is(err, service.ErrProductUnavailable):
		writeError(log, w, http.StatusNotFound, "Product not found", codeNotFound, nil)
	case errors.Is(err, storage.ErrCartItemNotFound):
		writeError(log, w, http.StatusNotFound, "Cart item not found", codeNotFound, nil)
	default:
		log.Error("cart operation failed", slog.Any("error", err))
		writeError(log, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
	}
}
