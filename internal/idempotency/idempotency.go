// Package idempotency — захват ключа Idempotency-Key на время оформления заказа.
// Пока ключ захвачен, повторный запрос с тем же ключом получает отказ,
// а после коммита повтор отдаёт уже созданный заказ.
package idempotency

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const HeaderKey = "Idempotency-Key"

// MaxKeyLength совпадает с длиной колонки orders.idempotency_key
const MaxKeyLength = 255

// Store захватывает ключ атомарно. Acquire возвращает false, если ключ уже занят.
type Store interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Key извлекает ключ из заголовка запроса; пустая строка — ключ не передан.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderKey))
}
