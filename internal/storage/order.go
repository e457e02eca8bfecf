package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/toff-shop/internal/domain/models"
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ и заполняет ID и временные метки.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// CreateOrderItemTx вставляет снимок позиции заказа.
	CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	// GetOrderByID возвращает заказ вместе с позициями.
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderByIdempotencyKey ищет заказ, созданный с данным ключом идемпотентности.
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя без позиций, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// LockOrderTx читает заказ под блокировкой FOR UPDATE.
	LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// UpdateStatusTx меняет статус; трек-номер перезаписывается, только если передан.
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, trackingNumber *string) error
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, full_name, email, address, city, phone, total_amount, coupon_id,
	discount_amount, status, payment_id, customer_note, tracking_number, idempotency_key, idempotency_fingerprint, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.FullName, &o.Email, &o.Address, &o.City, &o.Phone,
		&o.TotalAmount, &o.CouponID, &o.DiscountAmount, &o.Status, &o.PaymentID, &o.CustomerNote,
		&o.TrackingNumber, &o.IdempotencyKey, &o.IdempotencyFingerprint, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, mapPQError(err)
	}
	return o, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (user_id, full_name, email, address, city, phone, total_amount, coupon_id,
	          discount_amount, status, payment_id, customer_note, idempotency_key, idempotency_fingerprint, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	          RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.FullName, order.Email, order.Address, order.City, order.Phone,
		order.TotalAmount, order.CouponID, order.DiscountAmount, order.Status, order.PaymentID,
		order.CustomerNote, order.IdempotencyKey, order.IdempotencyFingerprint,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", mapPQError(err))
	}
	return nil
}

func (r *orderRepository) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, product_name, price, quantity, selected_size, selected_color)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.ProductName, item.Price, item.Quantity, item.SelectedSize, item.SelectedColor,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", mapPQError(err))
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.getOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) getOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, price, quantity, selected_size, selected_color
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Price, &it.Quantity, &it.SelectedSize, &it.SelectedColor); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = $1 ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	return scanOrder(row)
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, trackingNumber *string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, tracking_number = COALESCE($2, tracking_number), updated_at = NOW() WHERE id = $3",
		status, trackingNumber, id,
	)
	if err != nil {
		return mapPQError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
