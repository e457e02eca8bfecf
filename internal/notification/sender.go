// Package notification — письма покупателям. Сервисы только кладут запись в outbox
// в своей транзакции, а Dispatcher в фоне отправляет её через Sender.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/linemk/toff-shop/internal/domain/models"
)

// Sender доставляет одно уведомление. Ошибка записывается в outbox и дальше не поднимается.
type Sender interface {
	Send(ctx context.Context, to string, kind models.NotificationKind, data json.RawMessage) error
}

// LineData — строка заказа в письме
type LineData struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// OrderConfirmationData — данные письма о принятом заказе
type OrderConfirmationData struct {
	OrderID        int64      `json:"order_id"`
	FullName       string     `json:"full_name"`
	TotalAmount    string     `json:"total_amount"`
	DiscountAmount string     `json:"discount_amount"`
	Items          []LineData `json:"items"`
}

// OrderShippedData — данные письма об отправке заказа
type OrderShippedData struct {
	OrderID        int64  `json:"order_id"`
	FullName       string `json:"full_name"`
	TrackingNumber string `json:"tracking_number"`
}

// PasswordResetData — ссылка на страницу смены пароля с одноразовым токеном
type PasswordResetData struct {
	FullName  string `json:"full_name"`
	ResetLink string `json:"reset_link"`
}

// ContactData — обращение через форму обратной связи
type ContactData struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// LogSender ничего не отправляет, только пишет в лог. Драйвер по умолчанию для локальной разработки.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, to string, kind models.NotificationKind, data json.RawMessage) error {
	msg, err := Render(kind, data)
	if err != nil {
		return err
	}
	s.log.Info("notification",
		slog.String("to", to),
		slog.String("kind", string(kind)),
		slog.String("subject", msg.Subject),
	)
	return nil
}
