package payment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/linemk/toff-shop/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxGateway_ApprovesAndRefunds(t *testing.T) {
	gw := payment.NewSandboxGateway(testLogger(), []string{"4111 1111 1111 1129"})

	res, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{
		ConversationID: "c1",
		Amount:         decimal.RequireFromString("99.90"),
		Card:           &payment.Card{Number: "5528790000000008"},
	})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.True(t, strings.HasPrefix(res.PaymentRef, "SANDBOX-"))

	assert.NoError(t, gw.Refund(context.Background(), res.PaymentRef, decimal.RequireFromString("99.90")))
	assert.ErrorIs(t, gw.Refund(context.Background(), res.PaymentRef, decimal.RequireFromString("0.01")), payment.ErrGateway)
	assert.ErrorIs(t, gw.Refund(context.Background(), "unknown", decimal.NewFromInt(1)), payment.ErrGateway)
}

func TestSandboxGateway_DeclinesListedCard(t *testing.T) {
	gw := payment.NewSandboxGateway(testLogger(), []string{"4111 1111 1111 1129"})

	res, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{
		Amount: decimal.NewFromInt(10),
		Card:   &payment.Card{Number: "4111111111111129"},
	})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "card declined", res.DeclineReason)
	assert.Empty(t, res.PaymentRef)
}

func TestSandboxGateway_CancelledContext(t *testing.T) {
	gw := payment.NewSandboxGateway(testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Authorize(ctx, payment.AuthorizeRequest{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, context.Canceled)
}
