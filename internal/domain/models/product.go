package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар каталога
type Product struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Description   string              `json:"description,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"` // если задана — это фактическая цена за единицу
	Stock         int                 `json:"stock"`
	IsActive      bool                `json:"is_active"`
	CategoryID    *int64              `json:"category_id,omitempty"`
	CollectionID  *int64              `json:"collection_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// UnitPrice возвращает цену за единицу с учётом скидочной цены
func (p *Product) UnitPrice() decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// Category — категория каталога
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID *int64 `json:"parent,omitempty"`
}

// Collection — коллекция товаров
type Collection struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	Order        int       `json:"order"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}
