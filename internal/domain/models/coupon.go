package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponReason — причина отказа в применении купона
type CouponReason string

const (
	CouponNotFound       CouponReason = "not_found"
	CouponInactive       CouponReason = "inactive"
	CouponOutOfWindow    CouponReason = "out_of_window"
	CouponLimitExhausted CouponReason = "limit_exhausted"
)

// Coupon представляет купон на процентную скидку
type Coupon struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	IsActive        bool      `json:"is_active"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	UsageLimit      *int      `json:"usage_limit"` // nil — без ограничений
	UsedCount       int       `json:"used_count"`
}

// Check проверяет купон на момент now и возвращает причину отказа.
// Пустая строка означает, что купон можно применить.
// Окно проверяется первым: вне окна купон отклоняется независимо от флага активности.
func (c *Coupon) Check(now time.Time) CouponReason {
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return CouponOutOfWindow
	}
	if !c.IsActive {
		return CouponInactive
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return CouponLimitExhausted
	}
	return ""
}

// Percent возвращает процент скидки в виде decimal
func (c *Coupon) Percent() decimal.Decimal {
	return decimal.NewFromInt(int64(c.DiscountPercent))
}
