package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/linemk/toff-shop/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestHTTPGateway_Authorize_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/auth", r.URL.Path)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte("secret"))
		mac.Write(body)
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-Signature"))

		require.NoError(t, json.Unmarshal(body, &got))
		json.NewEncoder(w).Encode(map[string]string{
			"status":         "success",
			"paymentId":      "PAY-1",
			"conversationId": "conv-1",
		})
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(testLogger(), srv.URL+"/", "api-key", "secret", "TRY", time.Second)
	res, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{
		ConversationID: "conv-1",
		Amount:         decimal.RequireFromString("180"),
		Subtotal:       decimal.RequireFromString("200"),
		Card:           &payment.Card{HolderName: "Ada Lovelace", Number: "5528790000000008", ExpireMonth: "12", ExpireYear: "2030", CVC: "123"},
		Buyer:          payment.Buyer{FullName: "Ada King Lovelace", City: "Istanbul"},
		Items:          []payment.BasketItem{{ProductID: 7, Name: "Chair", Price: decimal.RequireFromString("200")}},
	})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, "PAY-1", res.PaymentRef)

	assert.Equal(t, "200.00", got["price"], "price matches the basket total")
	assert.Equal(t, "180.00", got["paidPrice"], "the discounted amount is charged")
	assert.Equal(t, "TRY", got["currency"])
	buyer := got["buyer"].(map[string]any)
	assert.Equal(t, "Ada", buyer["name"])
	assert.Equal(t, "King Lovelace", buyer["surname"])
	items := got["basketItems"].([]any)
	assert.Equal(t, "200.00", items[0].(map[string]any)["price"])
}

func TestHTTPGateway_Authorize_NoDiscountPricesMatch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "paymentId": "PAY-2"})
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(testLogger(), srv.URL, "k", "s", "TRY", time.Second)
	_, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{
		Amount: decimal.RequireFromString("49.90"),
		Items: []payment.BasketItem{
			{ProductID: 1, Name: "Stool", Price: decimal.RequireFromString("29.90")},
			{ProductID: 2, Name: "Lamp", Price: decimal.RequireFromString("20.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "49.90", got["price"])
	assert.Equal(t, "49.90", got["paidPrice"])
}

func TestHTTPGateway_Authorize_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"status": "failure", "errorMessage": "insufficient funds"})
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(testLogger(), srv.URL, "k", "s", "TRY", time.Second)
	res, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "insufficient funds", res.DeclineReason)
}

func TestHTTPGateway_Authorize_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(testLogger(), srv.URL, "k", "s", "TRY", time.Second)
	_, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, payment.ErrGateway)
}

func TestHTTPGateway_Authorize_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(testLogger(), srv.URL, "k", "s", "TRY", 50*time.Millisecond)
	_, err := gw.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(10)})
	assert.Error(t, err)
}

func TestHTTPGateway_Refund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/refund", r.URL.Path)
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["paymentId"] == "PAY-1" {
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "failure", "errorMessage": "unknown payment"})
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(testLogger(), srv.URL, "k", "s", "TRY", time.Second)
	assert.NoError(t, gw.Refund(context.Background(), "PAY-1", decimal.NewFromInt(10)))
	assert.ErrorIs(t, gw.Refund(context.Background(), "PAY-2", decimal.NewFromInt(10)), payment.ErrGateway)
}
