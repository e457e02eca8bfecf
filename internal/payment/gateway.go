// Package payment — клиенты платёжного шлюза. Шлюз вызывается синхронно один раз на оформление,
// повторов внутри клиента нет.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGateway — шлюз недоступен или ответил некорректно
var ErrGateway = errors.New("payment gateway error")

// Card — данные карты покупателя, передаются в шлюз как есть и нигде не сохраняются
type Card struct {
	HolderName  string
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVC         string
}

// Buyer — данные покупателя для антифрод-проверок шлюза
type Buyer struct {
	FullName string
	Email    string
	Address  string
	City     string
	Phone    string
}

// BasketItem — строка корзины; Price — сумма строки (цена за единицу, умноженная на количество)
type BasketItem struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
}

// AuthorizeRequest — Subtotal равен сумме позиций корзины до скидки,
// Amount списывается с карты. Пустой Subtotal означает заказ без скидки.
type AuthorizeRequest struct {
	ConversationID string
	Amount         decimal.Decimal
	Subtotal       decimal.Decimal
	Card           *Card
	Buyer          Buyer
	Items          []BasketItem
}

// AuthorizeResult — ответ шлюза. Отказ по карте — это не ошибка вызова:
// Approved=false и DeclineReason заполнен.
type AuthorizeResult struct {
	Approved       bool
	PaymentRef     string
	ConversationID string
	DeclineReason  string
}

// Gateway — синхронный платёжный шлюз.
type Gateway interface {
	// Authorize списывает сумму. Ошибка означает, что результат неизвестен (сеть, таймаут, 5xx).
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	// Refund возвращает ранее списанную сумму; используется как компенсация,
	// если заказ не удалось сохранить после успешной оплаты.
	Refund(ctx context.Context, paymentRef string, amount decimal.Decimal) error
}
