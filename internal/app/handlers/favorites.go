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

type FavoriteManager interface {
	ListFavorites(ctx context.Context, userID int64) ([]*models.Favorite, error)
	AddFavorite(ctx context.Context, userID, productID int64) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, productID int64) error
}

type AddFavoriteRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

func FavoritesHandler(log *slog.Logger, favorites FavoriteManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.FavoritesHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}

		list, err := favorites.ListFavorites(r.Context(), userID)
		if err != nil {
			writeFavoriteError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, list)
	}
}

func AddFavoriteHandler(log *slog.Logger, favorites FavoriteManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.AddFavoriteHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		var req AddFavoriteRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		fav, err := favorites.AddFavorite(r.Context(), userID, req.ProductID)
		if err != nil {
			writeFavoriteError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusCreated, fav)
	}
}

// RemoveFavoriteHandler — в пути ID товара, а не записи избранного
func RemoveFavoriteHandler(log *slog.Logger, favorites FavoriteManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.RemoveFavoriteHandler"))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			writeError(logger, w, http.StatusUnauthorized, "Unauthorized", codeUnauthorized, nil)
			return
		}
		productID, ok := pathID(logger, w, r, "productID")
		if !ok {
			return
		}

		if err := favorites.RemoveFavorite(r.Context(), userID, productID); err != nil {
			writeFavoriteError(logger, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeFavoriteError(log *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrProductNotFound), errors.Is(err, service.ErrProductUnavailable):
		writeError(log, w, http.StatusNotFound, "Product not found", codeNotFound, nil)
	case errors.Is(err, storage.ErrFavoriteNotFound):
		writeError(log, w, http.StatusNotFound, "Favorite not found", codeNotFound, nil)
	default:
		log.Error("favorite operation failed", slog.Any("error", err))
		writeError(log, w, http.StatusInternalServerError, "Internal server error", codeInternal, nil)
	}
}
