package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/storage"
)

type CatalogService struct {
	log      *slog.Logger
	products storage.ProductStorage
	catalog  storage.CatalogStorage
}

func NewCatalogService(log *slog.Logger, products storage.ProductStorage, catalog storage.CatalogStorage) *CatalogService {
	return &CatalogService{log: log, products: products, catalog: catalog}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*models.Product, error) {
	const op = "service.CatalogService.ListProducts"

	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

// GetProduct возвращает только активный товар; неактивный для покупателя не существует
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.CatalogService.GetProduct"

	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrProductNotFound)
	}
	return p, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	const op = "service.CatalogService.ListCategories"

	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		s.log.Error("failed to list categories", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return categories, nil
}

func (s *CatalogService) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	const op = "service.CatalogService.ListCollections"

	collections, err := s.catalog.ListCollections(ctx)
	if err != nil {
		s.log.Error("failed to list collections", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collections, nil
}
