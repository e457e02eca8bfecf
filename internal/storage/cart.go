package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/toff-shop/internal/domain/models"
)

// CartStorage описывает работу с корзиной пользователя.
type CartStorage interface {
	// GetOrCreateCart возвращает корзину пользователя, создавая её при первом обращении.
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	// GetCartItems возвращает позиции корзины с названием и текущей ценой товара.
	GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error)
	// AddItem добавляет позицию; одинаковый вариант (товар, размер, цвет) суммирует количество.
	AddItem(ctx context.Context, item *models.CartItem) error
	// UpdateItemQuantity задаёт количество позиции в корзине.
	UpdateItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) error
	// RemoveItem удаляет позицию из корзины.
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	// RemoveCheckedOutItemsTx удаляет из корзины пользователя оформленные варианты
	// (товар, размер, цвет) внутри транзакции заказа. Остальные позиции остаются.
	RemoveCheckedOutItemsTx(ctx context.Context, tx *sql.Tx, userID int64, variants []models.CartItem) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

// GetOrCreateCart — ON CONFLICT гарантирует одну корзину на пользователя даже при параллельных запросах
func (r *cartRepository) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	query := `INSERT INTO carts (user_id, created_at) VALUES ($1, NOW())
	          ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
	          RETURNING id, user_id, created_at`
	cart := &models.Cart{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", mapPQError(err))
	}
	return cart, nil
}

func (r *cartRepository) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, p.name, COALESCE(p.discount_price, p.price),
		       ci.quantity, ci.selected_size, ci.selected_color
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`
	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.ProductName, &it.UnitPrice,
			&it.Quantity, &it.SelectedSize, &it.SelectedColor); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) AddItem(ctx context.Context, item *models.CartItem) error {
	query := `INSERT INTO cart_items (cart_id, product_id, selected_size, selected_color, quantity)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (cart_id, product_id, selected_size, selected_color)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	          RETURNING id, quantity`
	err := r.db.QueryRowContext(ctx, query,
		item.CartID, item.ProductID, item.SelectedSize, item.SelectedColor, item.Quantity,
	).Scan(&item.ID, &item.Quantity)
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", mapPQError(err))
	}
	return nil
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3",
		quantity, itemID, cartID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrCartItemNotFound)
}

func (r *cartRepository) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrCartItemNotFound)
}

func (r *cartRepository) RemoveCheckedOutItemsTx(ctx context.Context, tx *sql.Tx, userID int64, variants []models.CartItem) error {
	if len(variants) == 0 {
		return nil
	}
	productIDs := make([]int64, len(variants))
	sizes := make([]string, len(variants))
	colors := make([]string, len(variants))
	for i, v := range variants {
		productIDs[i], sizes[i], colors[i] = v.ProductID, v.SelectedSize, v.SelectedColor
	}

	query := `DELETE FROM cart_items ci
	          USING carts c, unnest($2::bigint[], $3::text[], $4::text[]) AS v(product_id, selected_size, selected_color)
	          WHERE ci.cart_id = c.id AND c.user_id = $1
	            AND ci.product_id = v.product_id
	            AND ci.selected_size = v.selected_size
	            AND ci.selected_color = v.selected_color`
	_, err := tx.ExecContext(ctx, query, userID, pq.Array(productIDs), pq.Array(sizes), pq.Array(colors))
	if err != nil {
		return fmt.Errorf("failed to remove checked out cart items: %w", mapPQError(err))
	}
	return nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
