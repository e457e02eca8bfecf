package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/toff-shop/internal/domain/models"
)

// FavoriteStorage — избранные товары пользователя.
type FavoriteStorage interface {
	// ListFavorites возвращает избранное вместе с товарами, последние добавленные первыми.
	ListFavorites(ctx context.Context, userID int64) ([]*models.Favorite, error)
	// AddFavorite добавляет товар в избранное; повторное добавление возвращает существующую запись.
	AddFavorite(ctx context.Context, userID, productID int64) (*models.Favorite, error)
	// RemoveFavorite удаляет товар из избранного пользователя.
	RemoveFavorite(ctx context.Context, userID, productID int64) error
}

type favoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) FavoriteStorage {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) ListFavorites(ctx context.Context, userID int64) ([]*models.Favorite, error) {
	query := `SELECT f.id, f.created_at, ` + productColumns + `
	          FROM favorites f JOIN products p ON p.id = f.product_id
	          WHERE f.user_id = $1
	          ORDER BY f.created_at DESC, f.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*models.Favorite{}
	for rows.Next() {
		f := &models.Favorite{UserID: userID, Product: &models.Product{}}
		p := f.Product
		if err := rows.Scan(&f.ID, &f.CreatedAt, &p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.DiscountPrice,
			&p.Stock, &p.IsActive, &p.CategoryID, &p.CollectionID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		f.ProductID = p.ID
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// AddFavorite — DO UPDATE вместо DO NOTHING, чтобы RETURNING отдал строку и при повторе
func (r *favoriteRepository) AddFavorite(ctx context.Context, userID, productID int64) (*models.Favorite, error) {
	query := `INSERT INTO favorites (user_id, product_id, created_at) VALUES ($1, $2, NOW())
	          ON CONFLICT (user_id, product_id) DO UPDATE SET user_id = EXCLUDED.user_id
	          RETURNING id, created_at`
	f := &models.Favorite{UserID: userID, ProductID: productID}
	if err := r.db.QueryRowContext(ctx, query, userID, productID).Scan(&f.ID, &f.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to add favorite: %w", mapPQError(err))
	}
	return f, nil
}

func (r *favoriteRepository) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM favorites WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return expectAffected(res, ErrFavoriteNotFound)
}
