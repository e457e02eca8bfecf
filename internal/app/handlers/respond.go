package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/toff-shop/internal/service"
)

// коды ошибок в поле code, помимо видов отказа оформления заказа
const (
	codeInvalidInput = "invalid_input"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeInternal     = "internal_error"
)

// ErrorResponse — единый конверт ошибки
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Detail  any    `json:"detail,omitempty"`
}

var validate = validator.New()

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(log *slog.Logger, w http.ResponseWriter, status int, title, code string, detail any) {
	writeJSON(log, w, status, ErrorResponse{Error: title, Code: code, Detail: detail})
}

// decodeAndValidate читает JSON-тело и проверяет теги validate.
// При ошибке ответ уже записан и возвращается false.
func decodeAndValidate(log *slog.Logger, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Warn("invalid request: decoding error", slog.Any("error", err))
		writeError(log, w, http.StatusBadRequest, "Invalid request body", codeInvalidInput, nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		log.Warn("invalid request: validation error", slog.Any("error", err))
		writeError(log, w, http.StatusBadRequest, "Validation error", codeInvalidInput, validationDetail(err))
		return false
	}
	return true
}

// validationDetail превращает ошибки validator в {"поле": "правило"}
func validationDetail(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	detail := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		detail[fe.Namespace()] = fe.Tag()
	}
	return detail
}

func checkoutErrorStatus(kind service.CheckoutErrorKind) (int, string) {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest, "Invalid checkout request"
	case service.KindProductNotFound:
		return http.StatusNotFound, "Product not found"
	case service.KindInsufficientStock:
		return http.StatusConflict, "Insufficient stock"
	case service.KindCouponError:
		return http.StatusUnprocessableEntity, "Coupon cannot be applied"
	case service.KindPaymentFailed:
		return http.StatusPaymentRequired, "Payment failed"
	case service.KindCheckoutInProgress:
		return http.StatusConflict, "Checkout already in progress"
	}
	return http.StatusInternalServerError, "Order could not be saved"
}

// writeCheckoutError отдаёт структурированный отказ; детали зависят от вида ошибки
func writeCheckoutError(log *slog.Logger, w http.ResponseWriter, err error) {
	var ce *service.CheckoutError
	if !errors.As(err, &ce) {
		writeError(log, w, http.StatusInternalServerError, "Order could not be saved", string(service.KindPersistenceFailure), nil)
		return
	}

	status, title := checkoutErrorStatus(ce.Kind)
	var detail any
	switch ce.Kind {
	case service.KindInsufficientStock:
		detail = map[string]any{"items": ce.Shortfalls}
	case service.KindProductNotFound:
		detail = map[string]any{"product_id": ce.ProductID}
	case service.KindCouponError:
		detail = map[string]any{"reason": ce.CouponReason}
	case service.KindPersistenceFailure:
		// внутренние причины наружу не отдаём
	default:
		detail = ce.Message
	}
	writeError(log, w, status, title, string(ce.Kind), detail)
}
