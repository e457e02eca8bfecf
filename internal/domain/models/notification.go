package models

import (
	"encoding/json"
	"time"
)

// NotificationKind — тип письма
type NotificationKind string

const (
	NotificationOrderConfirmation NotificationKind = "order_confirmation"
	NotificationOrderShipped      NotificationKind = "order_shipped"
	NotificationPasswordReset     NotificationKind = "password_reset"
	// NotificationContactForm уходит в ящик магазина, NotificationContactResponse — автору обращения
	NotificationContactForm     NotificationKind = "contact_form"
	NotificationContactResponse NotificationKind = "contact_response"
)

// OutboxStatus — состояние записи в outbox
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSent       OutboxStatus = "sent"
	OutboxFailed     OutboxStatus = "failed"
)

// OutboxMessage — уведомление, записанное в одной транзакции с изменением заказа
// и отправляемое фоновым воркером
type OutboxMessage struct {
	ID        int64
	Kind      NotificationKind
	ToAddress string
	Payload   json.RawMessage
	Status    OutboxStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}
