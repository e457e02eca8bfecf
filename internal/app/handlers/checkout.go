package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/idempotency"
	"github.com/linemk/toff-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/toff-shop/internal/payment"
	"github.com/linemk/toff-shop/internal/service"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, req service.CheckoutRequest) (*service.OrderConfirmation, error)
}

type CheckoutItemRequest struct {
	ProductID     int64  `json:"product_id" validate:"required,gt=0"`
	Quantity      int    `json:"quantity" validate:"min=1,max=1000"`
	SelectedSize  string `json:"selected_size" validate:"max=50"`
	SelectedColor string `json:"selected_color" validate:"max=50"`
}

// CardRequest — данные карты передаются в платёжный шлюз и нигде не сохраняются
type CardRequest struct {
	HolderName  string `json:"card_holder_name" validate:"required,max=200"`
	Number      string `json:"card_number" validate:"required,credit_card"`
	ExpireMonth string `json:"expire_month" validate:"required,numeric,len=2"`
	ExpireYear  string `json:"expire_year" validate:"required,numeric,len=4"`
	CVC         string `json:"cvc" validate:"required,numeric,min=3,max=4"`
}

// CheckoutRequest — тело POST /api/orders/create. Обязательность полей доставки
// проверяет сервис, чтобы ответ был в терминах invalid_input.
type CheckoutRequest struct {
	FullName     string                `json:"full_name" validate:"max=200"`
	Email        string                `json:"email" validate:"omitempty,email,max=254"`
	Address      string                `json:"address"`
	City         string                `json:"city" validate:"max=100"`
	Phone        string                `json:"phone" validate:"max=20"`
	Items        []CheckoutItemRequest `json:"items" validate:"max=100,dive"`
	CouponCode   string                `json:"coupon_code" validate:"max=50"`
	CustomerNote string                `json:"customer_note" validate:"max=2000"`
	Card         *CardRequest          `json:"card"`
}

type CheckoutResponse struct {
	Success  bool          `json:"success"`
	Order    *models.Order `json:"order"`
	Replayed bool          `json:"replayed,omitempty"`
}

// CreateOrderHandler обрабатывает POST /api/orders/create.
// Токен необязателен: без него заказ оформляется как гостевой.
func CreateOrderHandler(log *slog.Logger, checkout OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req CheckoutRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		in := service.CheckoutRequest{
			Shipping: service.ShippingInfo{
				FullName: req.FullName,
				Email:    req.Email,
				Address:  req.Address,
				City:     req.City,
				Phone:    req.Phone,
			},
			CouponCode:     req.CouponCode,
			CustomerNote:   req.CustomerNote,
			IdempotencyKey: idempotency.Key(r),
		}
		if userID, ok := jwtmiddleware.FromContext(r.Context()); ok {
			in.UserID = &userID
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, service.CheckoutItem{
				ProductID:     it.ProductID,
				Quantity:      it.Quantity,
				SelectedSize:  it.SelectedSize,
				SelectedColor: it.SelectedColor,
			})
		}
		if req.Card != nil {
			in.Card = &payment.Card{
				HolderName:  req.Card.HolderName,
				Number:      req.Card.Number,
				ExpireMonth: req.Card.ExpireMonth,
				ExpireYear:  req.Card.ExpireYear,
				CVC:         req.Card.CVC,
			}
		}

		conf, err := checkout.CreateOrder(r.Context(), in)
		if err != nil {
			logger.Warn("checkout failed", slog.Any("error", err))
			writeCheckoutError(logger, w, err)
			return
		}

		status := http.StatusCreated
		if conf.Replayed {
			status = http.StatusOK
		}
		writeJSON(logger, w, status, CheckoutResponse{Success: true, Order: conf.Order, Replayed: conf.Replayed})
	}
}
