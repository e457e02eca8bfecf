package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SetLockTimeoutTx ограничивает ожидание блокировок строк в рамках транзакции.
// По истечении PostgreSQL вернёт 55P03, который превращается в ErrRowLocked.
func SetLockTimeoutTx(ctx context.Context, tx *sql.Tx, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	// SET не принимает плейсхолдеры, значение — целое число миллисекунд
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds()))
	return err
}

// Savepoint открывает точку сохранения, чтобы откатить часть транзакции
// без потери уже сделанных изменений. name подставляется в SQL как есть.
func Savepoint(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

// RollbackToSavepoint отменяет изменения после точки сохранения; транзакция остаётся рабочей.
func RollbackToSavepoint(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func ReleaseSavepoint(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
