package service

import (
	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricedLine — строка корзины с ценой, зафиксированной на момент расчёта
type PricedLine struct {
	Product       *models.Product
	Quantity      int
	SelectedSize  string
	SelectedColor string
	UnitPrice     decimal.Decimal
	LineTotal     decimal.Decimal
}

// PriceLine считает строку по скидочной цене, если она задана, иначе по обычной
func PriceLine(p *models.Product, quantity int) (unit, total decimal.Decimal) {
	unit = p.UnitPrice()
	return unit, unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Subtotal — сумма строк до купона
func Subtotal(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// ApplyCoupon возвращает скидку (округлённую до копеек) и итог к оплате.
// Итог всегда равен subtotal минус скидка, без отдельного округления.
func ApplyCoupon(subtotal decimal.Decimal, percent int) (discount, total decimal.Decimal) {
	discount = subtotal.Mul(decimal.NewFromInt(int64(percent))).Div(hundred).Round(2)
	return discount, subtotal.Sub(discount)
}
