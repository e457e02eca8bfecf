package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrFavoriteNotFound  = errors.New("favorite not found")
	ErrAddressNotFound   = errors.New("address not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCouponExhausted   = errors.New("coupon usage limit exhausted")
	ErrRowLocked         = errors.New("row is locked by another transaction")
	ErrDuplicate         = errors.New("duplicate key")
)

// коды ошибок PostgreSQL, которые имеют смысл для бизнес-логики
const (
	pqLockNotAvailable = "55P03"
	pqDeadlock         = "40P01"
	pqUniqueViolation  = "23505"
)

// mapPQError переводит ошибки драйвера в sentinel-ошибки пакета
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqLockNotAvailable, pqDeadlock:
		return fmt.Errorf("%w: %s", ErrRowLocked, pqErr.Message)
	case pqUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
