package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/storage"
)

// CouponPreview — результат предварительной проверки купона
type CouponPreview struct {
	Valid           bool                `json:"valid"`
	Code            string              `json:"code"`
	DiscountPercent int                 `json:"discount_percent,omitempty"`
	Reason          models.CouponReason `json:"reason,omitempty"`
}

type CouponService struct {
	log     *slog.Logger
	coupons storage.CouponStorage
	now     func() time.Time
}

func NewCouponService(log *slog.Logger, coupons storage.CouponStorage) *CouponService {
	return &CouponService{log: log, coupons: coupons, now: time.Now}
}

// Validate проверяет купон, не меняя счётчик использований
func (s *CouponService) Validate(ctx context.Context, code string) (*CouponPreview, error) {
	const op = "service.CouponService.Validate"
	code = strings.TrimSpace(code)
	logger := s.log.With(slog.String("op", op), slog.String("code", code))

	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrCouponNotFound) {
			return &CouponPreview{Code: code, Reason: models.CouponNotFound}, nil
		}
		logger.Error("failed to get coupon", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if reason := coupon.Check(s.now()); reason != "" {
		logger.Info("coupon rejected", slog.String("reason", string(reason)))
		return &CouponPreview{Code: coupon.Code, Reason: reason}, nil
	}
	return &CouponPreview{Valid: true, Code: coupon.Code, DiscountPercent: coupon.DiscountPercent}, nil
}
