package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/linemk/toff-shop/internal/service"
)

type CouponValidator interface {
	Validate(ctx context.Context, code string) (*service.CouponPreview, error)
}

type ValidateCouponRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

// ValidateCouponHandler обрабатывает POST /api/coupons/validate.
// Недействительный купон — это 200 с valid=false и причиной, а не ошибка.
func ValidateCouponHandler(log *slog.Logger, coupons CouponValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ValidateCouponHandler"
		logger := log.With(slog.String("op", op))

		var req ValidateCouponRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		preview, err := coupons.Validate(r.Context(), req.Code)
		if err != nil {
			logger.Error("failed to validate coupon", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, "Failed to validate coupon", codeInternal, nil)
			return
		}
		writeJSON(logger, w, http.StatusOK, preview)
	}
}
