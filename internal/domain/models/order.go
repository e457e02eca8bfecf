package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус заказа
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusOrderConfirmed OrderStatus = "order_confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusMetalworks     OrderStatus = "metalworks"
	StatusWoodworks      OrderStatus = "woodworks"
	StatusFinishing      OrderStatus = "finishing"
	StatusQualityControl OrderStatus = "quality_control"
	StatusShipped        OrderStatus = "shipped"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses — все известные статусы в порядке производственного цикла
var OrderStatuses = []OrderStatus{
	StatusPendingPayment,
	StatusOrderConfirmed,
	StatusPreparing,
	StatusMetalworks,
	StatusWoodworks,
	StatusFinishing,
	StatusQualityControl,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// IsValid сообщает, является ли статус одним из известных значений
func (s OrderStatus) IsValid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal — из этих статусов заказ по производственному циклу дальше не двигается
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order — заказ, созданный при оформлении корзины.
// Финансовые поля и позиции не меняются после создания.
type Order struct {
	ID             int64           `json:"id"`
	UserID         *int64          `json:"user_id,omitempty"` // nil — гостевой заказ
	FullName       string          `json:"full_name"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Phone          string          `json:"phone"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CouponID       *int64          `json:"coupon_id,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Status         OrderStatus     `json:"status"`
	PaymentID      string          `json:"payment_id"`
	CustomerNote   string          `json:"customer_note,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	IdempotencyKey *string         `json:"-"`
	Items          []OrderItem     `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// IdempotencyFingerprint — хеш содержимого запроса, создавшего заказ по ключу
	IdempotencyFingerprint *string `json:"-"`
}

// OrderItem — снимок позиции на момент покупки. Ссылка на товар может стать nil,
// если товар удалён, но название и цена остаются такими, какими были.
type OrderItem struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	ProductID     *int64          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	SelectedSize  string          `json:"selected_size,omitempty"`
	SelectedColor string          `json:"selected_color,omitempty"`
}

// LineTotal — цена позиции, умноженная на количество
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
