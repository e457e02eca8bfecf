package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	authorizePath = "/payment/auth"
	refundPath    = "/payment/refund"

	statusSuccess = "success"
)

// HTTPGateway — REST-клиент платёжного шлюза.
// Запросы подписываются HMAC-SHA256 от тела секретным ключом (заголовок X-Signature).
type HTTPGateway struct {
	log       *slog.Logger
	client    *http.Client
	baseURL   string
	apiKey    string
	secretKey string
	currency  string
}

func NewHTTPGateway(log *slog.Logger, baseURL, apiKey, secretKey, currency string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		log:       log,
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		currency:  currency,
	}
}

type paymentCardDTO struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	ExpireMonth    string `json:"expireMonth"`
	ExpireYear     string `json:"expireYear"`
	CVC            string `json:"cvc"`
	RegisterCard   string `json:"registerCard"`
}

type buyerDTO struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email,omitempty"`
	Gsm     string `json:"gsmNumber"`
	Address string `json:"registrationAddress"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type basketItemDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ItemType string `json:"itemType"`
	Price    string `json:"price"`
}

type authorizeRequestDTO struct {
	ConversationID string          `json:"conversationId"`
	Price          string          `json:"price"`
	PaidPrice      string          `json:"paidPrice"`
	Currency       string          `json:"currency"`
	Installment    string          `json:"installment"`
	PaymentChannel string          `json:"paymentChannel"`
	PaymentCard    *paymentCardDTO `json:"paymentCard,omitempty"`
	Buyer          buyerDTO        `json:"buyer"`
	BasketItems    []basketItemDTO `json:"basketItems"`
}

type gatewayResponseDTO struct {
	Status         string `json:"status"`
	PaymentID      string `json:"paymentId"`
	ConversationID string `json:"conversationId"`
	ErrorMessage   string `json:"errorMessage"`
}

type refundRequestDTO struct {
	PaymentID string `json:"paymentId"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
}

func (g *HTTPGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	const op = "payment.HTTPGateway.Authorize"
	logger := g.log.With(slog.String("op", op), slog.String("conversation_id", req.ConversationID))

	// price сверяется шлюзом с суммой корзины, paidPrice списывается с карты
	price := req.Subtotal
	if price.IsZero() {
		price = req.Amount
	}
	body := authorizeRequestDTO{
		ConversationID: req.ConversationID,
		Price:          price.StringFixed(2),
		PaidPrice:      req.Amount.StringFixed(2),
		Currency:       g.currency,
		Installment:    "1",
		PaymentChannel: "WEB",
		Buyer:          toBuyerDTO(req.Buyer),
	}
	if req.Card != nil {
		body.PaymentCard = &paymentCardDTO{
			CardHolderName: req.Card.HolderName,
			CardNumber:     req.Card.Number,
			ExpireMonth:    req.Card.ExpireMonth,
			ExpireYear:     req.Card.ExpireYear,
			CVC:            req.Card.CVC,
			RegisterCard:   "0",
		}
	}
	for _, it := range req.Items {
		body.BasketItems = append(body.BasketItems, basketItemDTO{
			ID:       strconv.FormatInt(it.ProductID, 10),
			Name:     it.Name,
			ItemType: "PHYSICAL",
			Price:    it.Price.StringFixed(2),
		})
	}

	var resp gatewayResponseDTO
	if err := g.post(ctx, authorizePath, body, &resp); err != nil {
		logger.Error("authorize request failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.Status != statusSuccess {
		logger.Warn("payment declined", slog.String("reason", resp.ErrorMessage))
		reason := resp.ErrorMessage
		if reason == "" {
			reason = "payment declined"
		}
		return &AuthorizeResult{Approved: false, ConversationID: resp.ConversationID, DeclineReason: reason}, nil
	}

	logger.Info("payment authorized", slog.String("payment_ref", resp.PaymentID))
	return &AuthorizeResult{Approved: true, PaymentRef: resp.PaymentID, ConversationID: resp.ConversationID}, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, paymentRef string, amount decimal.Decimal) error {
	const op = "payment.HTTPGateway.Refund"

	var resp gatewayResponseDTO
	body := refundRequestDTO{PaymentID: paymentRef, Price: amount.StringFixed(2), Currency: g.currency}
	if err := g.post(ctx, refundPath, body, &resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.Status != statusSuccess {
		return fmt.Errorf("%s: refund rejected: %s: %w", op, resp.ErrorMessage, ErrGateway)
	}
	return nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("X-Signature", g.sign(payload))

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	// 4xx с телом — это отказ, его разбираем как обычный ответ; 5xx — сбой шлюза
	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", ErrGateway, err)
	}
	return nil
}

func (g *HTTPGateway) sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(g.secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func toBuyerDTO(b Buyer) buyerDTO {
	name, surname := splitName(b.FullName)
	return buyerDTO{
		Name:    name,
		Surname: surname,
		Email:   b.Email,
		Gsm:     b.Phone,
		Address: b.Address,
		City:    b.City,
		Country: "Turkey",
	}
}

func splitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
