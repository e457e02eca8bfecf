package models_test

import (
	"testing"
	"time"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCoupon_Check(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	base := models.Coupon{
		Code:            "SPRING10",
		DiscountPercent: 10,
		IsActive:        true,
		ValidFrom:       now.Add(-24 * time.Hour),
		ValidTo:         now.Add(24 * time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		want   models.CouponReason
	}{
		{name: "valid", mutate: func(c *models.Coupon) {}, want: ""},
		{name: "not started", mutate: func(c *models.Coupon) { c.ValidFrom = now.Add(time.Minute) }, want: models.CouponOutOfWindow},
		{name: "expired", mutate: func(c *models.Coupon) { c.ValidTo = now.Add(-time.Minute) }, want: models.CouponOutOfWindow},
		{name: "window bounds are inclusive", mutate: func(c *models.Coupon) { c.ValidFrom, c.ValidTo = now, now }, want: ""},
		{name: "inactive", mutate: func(c *models.Coupon) { c.IsActive = false }, want: models.CouponInactive},
		{
			// окно проверяется раньше флага активности
			name: "expired and inactive",
			mutate: func(c *models.Coupon) {
				c.IsActive = false
				c.ValidTo = now.Add(-time.Hour)
			},
			want: models.CouponOutOfWindow,
		},
		{name: "limit exhausted", mutate: func(c *models.Coupon) { c.UsageLimit, c.UsedCount = intPtr(3), 3 }, want: models.CouponLimitExhausted},
		{name: "limit not reached", mutate: func(c *models.Coupon) { c.UsageLimit, c.UsedCount = intPtr(3), 2 }, want: ""},
		{name: "unlimited", mutate: func(c *models.Coupon) { c.UsedCount = 10_000 }, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Equal(t, tt.want, c.Check(now))
		})
	}
}
