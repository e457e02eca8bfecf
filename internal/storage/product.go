package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/linemk/toff-shop/internal/domain/models"
)

// ProductStorage описывает чтение каталога и складской учёт по товарам.
type ProductStorage interface {
	// GetProductByID возвращает товар с текущими ценой и остатком, без блокировок.
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// GetProductBySlug ищет товар по slug.
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	// ListProducts возвращает активные товары с фильтрами по категории и коллекции.
	ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error)
	// LockProductsTx блокирует строки товаров (FOR UPDATE) до конца транзакции.
	// Строки блокируются в порядке возрастания id, отсутствующих товаров в результате нет.
	LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error)
	// DecrementStockTx списывает остаток, только если его хватает.
	DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error
}

// ProductFilter — фильтры списка товаров, пустые поля не применяются
type ProductFilter struct {
	CategorySlug   string
	CollectionSlug string
	Slug           string
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт репозиторий товаров.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = "p.id, p.name, p.slug, p.description, p.price, p.discount_price, p.stock, p.is_active, p.category_id, p.collection_id, p.created_at"

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.DiscountPrice,
		&p.Stock, &p.IsActive, &p.CategoryID, &p.CollectionID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products p WHERE p.id = $1", id)
	return scanProduct(row)
}

func (r *productRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products p WHERE p.slug = $1", slug)
	return scanProduct(row)
}

func (r *productRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	var (
		where = []string{"p.is_active"}
		args  []any
	)
	query := "SELECT " + productColumns + " FROM products p"
	if filter.CategorySlug != "" {
		query += " JOIN categories c ON c.id = p.category_id"
		args = append(args, filter.CategorySlug)
		where = append(where, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if filter.CollectionSlug != "" {
		query += " JOIN collections col ON col.id = p.collection_id"
		args = append(args, filter.CollectionSlug)
		where = append(where, fmt.Sprintf("col.slug = $%d", len(args)))
	}
	if filter.Slug != "" {
		args = append(args, filter.Slug)
		where = append(where, fmt.Sprintf("p.slug = $%d", len(args)))
	}
	query += " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products p WHERE p.id = ANY($1) ORDER BY p.id FOR UPDATE"
	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, mapPQError(err)
	}
	defer rows.Close()

	locked := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapPQError(err)
		}
		locked[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, mapPQError(err)
	}
	return locked, nil
}

// DecrementStockTx — условие stock >= quantity в самом UPDATE не даёт остатку уйти в минус,
// даже если вызывающий код забыл взять блокировку.
func (r *productRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
		quantity, id,
	)
	if err != nil {
		return mapPQError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
