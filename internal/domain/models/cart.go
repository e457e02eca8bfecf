package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart — корзина пользователя, у каждого пользователя ровно одна
type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

// CartItem — позиция корзины. Уникальна по (товар, размер, цвет):
// одинаковые варианты сливаются в одну строку с суммарным количеством.
type CartItem struct {
	ID            int64           `json:"id"`
	CartID        int64           `json:"cart_id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	SelectedSize  string          `json:"selected_size"`
	SelectedColor string          `json:"selected_color"`
}
