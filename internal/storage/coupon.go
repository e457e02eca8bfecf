package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/toff-shop/internal/domain/models"
)

// CouponStorage описывает чтение купонов и учёт их использования.
type CouponStorage interface {
	// GetCouponByCode ищет купон без учёта регистра кода.
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// LockCouponTx перечитывает купон под блокировкой FOR UPDATE.
	LockCouponTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Coupon, error)
	// IncrementUsageTx увеличивает used_count, не выходя за usage_limit.
	IncrementUsageTx(ctx context.Context, tx *sql.Tx, id int64) error
}

type couponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) CouponStorage {
	return &couponRepository{db: db}
}

const couponColumns = "id, code, discount_percent, is_active, valid_from, valid_to, usage_limit, used_count"

func scanCoupon(row *sql.Row) (*models.Coupon, error) {
	c := &models.Coupon{}
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.IsActive, &c.ValidFrom, &c.ValidTo, &c.UsageLimit, &c.UsedCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, mapPQError(err)
	}
	return c, nil
}

func (r *couponRepository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+couponColumns+" FROM coupons WHERE lower(code) = lower($1)", code)
	return scanCoupon(row)
}

func (r *couponRepository) LockCouponTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Coupon, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+couponColumns+" FROM coupons WHERE id = $1 FOR UPDATE", id)
	return scanCoupon(row)
}

func (r *couponRepository) IncrementUsageTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE coupons SET used_count = used_count + 1 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)",
		id,
	)
	if err != nil {
		return mapPQError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCouponExhausted
	}
	return nil
}
