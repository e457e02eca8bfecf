package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSender_PublishesRenderedEmail(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSender{writer: w}
	data := json.RawMessage(`{"order_id":9,"full_name":"Ada","tracking_number":"TRK-1"}`)

	require.NoError(t, s.Send(context.Background(), "ada@example.com", models.NotificationOrderShipped, data))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ada@example.com", string(w.msgs[0].Key))

	var ev EmailEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, models.NotificationOrderShipped, ev.Kind)
	assert.Contains(t, ev.HTML, "TRK-1")
	assert.JSONEq(t, string(data), string(ev.Data))
}

func TestKafkaSender_WriteError(t *testing.T) {
	s := &KafkaSender{writer: &fakeWriter{err: errors.New("broker down")}}
	err := s.Send(context.Background(), "a@b.c", models.NotificationOrderShipped, json.RawMessage(`{"order_id":1}`))
	assert.EqualError(t, err, "broker down")
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("shop@toff.shop", "ada@example.com", &Message{Subject: "Siparişiniz alındı #1", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "From: <shop@toff.shop>")
	assert.Contains(t, raw, "To: <ada@example.com>")
	assert.Contains(t, raw, "Subject: =?UTF-8?q?", "non-ASCII subject is encoded")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, "<p>hi</p>")
}

func TestBuildMessage_InvalidRecipient(t *testing.T) {
	_, err := buildMessage("shop@toff.shop", "not an address", &Message{Subject: "x", HTML: "x"})
	assert.ErrorContains(t, err, "invalid recipient address")
}

func TestSMTPSender_UnknownKindFailsBeforeDial(t *testing.T) {
	s := NewSMTPSender("127.0.0.1", 1, "", "", "shop@toff.shop")
	err := s.Send(context.Background(), "ada@example.com", models.NotificationKind("newsletter"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}
