package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/storage"
)

type FavoriteService struct {
	log       *slog.Logger
	favorites storage.FavoriteStorage
	products  storage.ProductStorage
}

func NewFavoriteService(log *slog.Logger, favorites storage.FavoriteStorage, products storage.ProductStorage) *FavoriteService {
	return &FavoriteService{log: log, favorites: favorites, products: products}
}

func (s *FavoriteService) ListFavorites(ctx context.Context, userID int64) ([]*models.Favorite, error) {
	const op = "service.FavoriteService.ListFavorites"

	favorites, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		s.log.Error("failed to list favorites", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return favorites, nil
}

// AddFavorite добавляет активный товар в избранное; повтор не создаёт дубликат
func (s *FavoriteService) AddFavorite(ctx context.Context, userID, productID int64) (*models.Favorite, error) {
	const op = "service.FavoriteService.AddFavorite"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID))

	p, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if !errors.Is(err, storage.ErrProductNotFound) {
			logger.Error("failed to get product", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrProductUnavailable)
	}

	fav, err := s.favorites.AddFavorite(ctx, userID, productID)
	if err != nil {
		logger.Error("failed to add favorite", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fav.Product = p
	logger.Info("favorite added", slog.Int64("favoriteID", fav.ID))
	return fav, nil
}

func (s *FavoriteService) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	const op = "service.FavoriteService.RemoveFavorite"

	if err := s.favorites.RemoveFavorite(ctx, userID, productID); err != nil {
		if !errors.Is(err, storage.ErrFavoriteNotFound) {
			s.log.Error("failed to remove favorite", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
