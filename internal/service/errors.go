package service

import (
	"errors"
	"fmt"

	"github.com/linemk/toff-shop/internal/domain/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 1000")
	ErrProductUnavailable = errors.New("product is not available")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrOrderAccessDenied  = errors.New("order belongs to another user")
	ErrInvalidResetToken  = errors.New("invalid or expired password reset token")
	ErrInvalidAddress     = errors.New("invalid address")
)

// CheckoutErrorKind — шаг оформления, на котором произошёл отказ
type CheckoutErrorKind string

const (
	KindInvalidInput       CheckoutErrorKind = "invalid_input"
	KindProductNotFound    CheckoutErrorKind = "product_not_found"
	KindInsufficientStock  CheckoutErrorKind = "insufficient_stock"
	KindCouponError        CheckoutErrorKind = "coupon_error"
	KindPaymentFailed      CheckoutErrorKind = "payment_failed"
	KindCheckoutInProgress CheckoutErrorKind = "checkout_in_progress"
	KindPersistenceFailure CheckoutErrorKind = "persistence_failure"
)

// StockShortfall — позиция, которой не хватает на складе
type StockShortfall struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// CheckoutError — структурированный отказ оформления заказа.
// errors.Is сравнивает только Kind, поэтому работает с переменными ErrCheckout*.
type CheckoutError struct {
	Kind         CheckoutErrorKind
	Message      string
	ProductID    int64
	Shortfalls   []StockShortfall
	CouponReason models.CouponReason
	Err          error
}

var (
	ErrCheckoutInvalidInput       = &CheckoutError{Kind: KindInvalidInput}
	ErrCheckoutProductNotFound    = &CheckoutError{Kind: KindProductNotFound}
	ErrCheckoutInsufficientStock  = &CheckoutError{Kind: KindInsufficientStock}
	ErrCheckoutCoupon             = &CheckoutError{Kind: KindCouponError}
	ErrCheckoutPaymentFailed      = &CheckoutError{Kind: KindPaymentFailed}
	ErrCheckoutInProgress         = &CheckoutError{Kind: KindCheckoutInProgress}
	ErrCheckoutPersistenceFailure = &CheckoutError{Kind: KindPersistenceFailure}
)

func (e *CheckoutError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

func (e *CheckoutError) Is(target error) bool {
	t, ok := target.(*CheckoutError)
	return ok && t.Kind == e.Kind
}

func invalidInput(msg string) *CheckoutError {
	return &CheckoutError{Kind: KindInvalidInput, Message: msg}
}

func productNotFound(id int64) *CheckoutError {
	return &CheckoutError{Kind: KindProductNotFound, Message: fmt.Sprintf("product %d not found", id), ProductID: id}
}

func insufficientStock(shortfalls []StockShortfall) *CheckoutError {
	return &CheckoutError{Kind: KindInsufficientStock, Message: "insufficient stock", Shortfalls: shortfalls}
}

func couponError(reason models.CouponReason) *CheckoutError {
	return &CheckoutError{Kind: KindCouponError, Message: "coupon cannot be applied", CouponReason: reason}
}

func paymentFailed(detail string, err error) *CheckoutError {
	return &CheckoutError{Kind: KindPaymentFailed, Message: detail, Err: err}
}

func persistenceFailure(msg string, err error) *CheckoutError {
	return &CheckoutError{Kind: KindPersistenceFailure, Message: msg, Err: err}
}
