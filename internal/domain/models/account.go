package models

import "time"

// Favorite — товар в избранном пользователя, пара (user, product) уникальна
type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	ProductID int64     `json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Address — сохранённый адрес доставки. Реквизиты для счёта (TCID, налоговые поля)
// необязательны и заполняются для корпоративных покупателей.
type Address struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Title         string    `json:"title"`
	FullName      string    `json:"full_name"`
	Phone         string    `json:"phone"`
	City          string    `json:"city"`
	District      string    `json:"district,omitempty"`
	Address       string    `json:"address"`
	TCID          string    `json:"tc_id,omitempty"`
	CorporateName string    `json:"corporate_name,omitempty"`
	TaxOffice     string    `json:"tax_office,omitempty"`
	TaxNumber     string    `json:"tax_number,omitempty"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}
