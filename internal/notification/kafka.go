package notification

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender публикует готовое письмо в топик, откуда его забирает внешний почтовый сервис
type KafkaSender struct {
	writer messageWriter
}

// EmailEvent — сообщение в топике уведомлений
type EmailEvent struct {
	EventID string                  `json:"event_id"`
	Kind    models.NotificationKind `json:"kind"`
	To      string                  `json:"to"`
	Subject string                  `json:"subject"`
	HTML    string                  `json:"html"`
	Data    json.RawMessage         `json:"data"`
}

func NewKafkaSender(brokersCSV, topic string) *KafkaSender {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaSender{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (s *KafkaSender) Send(ctx context.Context, to string, kind models.NotificationKind, data json.RawMessage) error {
	msg, err := Render(kind, data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(EmailEvent{
		EventID: uuid.NewString(),
		Kind:    kind,
		To:      to,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Data:    data,
	})
	if err != nil {
		return err
	}
	// ключ — адрес получателя, письма одному адресату попадают в одну партицию
	return s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(to), Value: value, Time: time.Now().UTC()})
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
