package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/storage"
)

// CatalogReader — чтение каталога для публичных эндпоинтов
type CatalogReader interface {
	ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListCollections(ctx context.Context) ([]*models.Collection, error)
}

// ProductsHandler обрабатывает GET /api/products?category_slug=&collection_slug=&slug=
func ProductsHandler(log *slog.Logger, catalog CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductsHandler"
		logger := log.With(slog.String("op", op))

		q := r.URL.Query()
		products, err := catalog.ListProducts(r.Context(), storage.ProductFilter{
			CategorySlug:   q.Get("category_slug"),
			CollectionSlug: q.Get("collection_slug"),
			Slug:           q.Get("slug"),
		})
		if err != nil {
			logger.Error("failed to list products", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Failed to list products", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusOK, products)
	}
}

// ProductHandler обрабатывает GET /api/products/{id}
func ProductHandler(log *slog.Logger, catalog CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := pathID(logger, w, r, "id")
		if !ok {
			return
		}

		product, err := catalog.GetProduct(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				writeError(logger, w, http.StatusNotFound, "Product not found", codeNotFound, nil)
				return
			}
			logger.Error("failed to get product", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Failed to get product", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusOK, product)
	}
}

func CategoriesHandler(log *slog.Logger, catalog CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CategoriesHandler"))

		categories, err := catalog.ListCategories(r.Context())
		if err != nil {
			logger.Error("failed to list categories", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Failed to list categories", codeInternal, nil)
			return
		}
		if categories == nil {
			categories = []*models.Category{}
		}
		writeJSON(logger, w, http.StatusOK, categories)
	}
}

func CollectionsHandler(log *slog.Logger, catalog CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.CollectionsHandler"))

		collections, err := catalog.ListCollections(r.Context())
		if err != nil {
			logger.Error("failed to list collections", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Failed to list collections", codeInternal, nil)
			return
		}
		if collections == nil {
			collections = []*models.Collection{}
		}
		writeJSON(logger, w, http.StatusOK, collections)
	}
}

// pathID читает положительный числовой параметр пути
func pathID(log *slog.Logger, w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(log, w, http.StatusBadRequest, "Invalid "+name, codeInvalidInput, nil)
		return 0, false
	}
	return id, true
}
