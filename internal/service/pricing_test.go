package service_test

import (
	"testing"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceLine_DiscountPriceFallback(t *testing.T) {
	p := &models.Product{Price: dec("100")}
	unit, total := service.PriceLine(p, 3)
	assert.True(t, unit.Equal(dec("100")))
	assert.True(t, total.Equal(dec("300")))

	p.DiscountPrice = decimal.NewNullDecimal(dec("79.90"))
	unit, total = service.PriceLine(p, 2)
	assert.True(t, unit.Equal(dec("79.90")))
	assert.True(t, total.Equal(dec("159.80")))
}

func TestApplyCoupon(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		percent  int
		discount string
		total    string
	}{
		{"ten percent of 200", "200", 10, "20.00", "180.00"},
		{"rounds half up to cents", "33.35", 15, "5.00", "28.35"},
		{"zero percent", "99.99", 0, "0", "99.99"},
		{"full discount", "50", 100, "50", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discount, total := service.ApplyCoupon(dec(tt.subtotal), tt.percent)
			assert.True(t, discount.Equal(dec(tt.discount)), "discount %s", discount)
			assert.True(t, total.Equal(dec(tt.total)), "total %s", total)
			assert.True(t, total.Add(discount).Equal(dec(tt.subtotal)))
		})
	}
}

func TestSubtotal(t *testing.T) {
	lines := []service.PricedLine{
		{LineTotal: dec("10.10")},
		{LineTotal: dec("0.20")},
	}
	assert.True(t, service.Subtotal(lines).Equal(dec("10.30")))
}
