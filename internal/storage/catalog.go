package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/toff-shop/internal/domain/models"
)

// CatalogStorage — категории и коллекции каталога
type CatalogStorage interface {
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListCollections(ctx context.Context) ([]*models.Collection, error)
}

type catalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) CatalogStorage {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, slug, parent_id FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListCollections возвращает активные коллекции с числом товаров, в порядке поля sort_order
func (r *catalogRepository) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	query := `
		SELECT col.id, col.name, col.slug, col.description, col.is_active, col.sort_order,
		       (SELECT count(*) FROM products p WHERE p.collection_id = col.id) AS product_count,
		       col.created_at
		FROM collections col
		WHERE col.is_active
		ORDER BY col.sort_order, col.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []*models.Collection
	for rows.Next() {
		c := &models.Collection{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.Order, &c.ProductCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return collections, nil
}
