package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/toff-shop/internal/domain/models"
)

// OutboxStorage — очередь уведомлений в таблице notification_outbox.
// Запись добавляется в той же транзакции, что и изменение заказа,
// а отправляет её фоновый воркер.
type OutboxStorage interface {
	// EnqueueTx добавляет уведомление в очередь внутри транзакции.
	EnqueueTx(ctx context.Context, tx *sql.Tx, msg *models.OutboxMessage) error
	// Enqueue добавляет уведомления вне чужой транзакции: все записи или ни одной.
	Enqueue(ctx context.Context, msgs ...*models.OutboxMessage) error
	// ClaimPending забирает до limit ожидающих записей и помечает их как processing.
	// Записи, висящие в processing дольше staleAfter (воркер упал посреди отправки),
	// забираются повторно. Параллельные воркеры не получат одну и ту же запись (SKIP LOCKED).
	ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.OutboxMessage, error)
	// Release возвращает неотправленные записи в pending, не расходуя попытку.
	Release(ctx context.Context, ids []int64) error
	// MarkSent помечает запись отправленной.
	MarkSent(ctx context.Context, id int64) error
	// MarkFailed сохраняет ошибку; при retry запись возвращается в pending, иначе становится failed.
	MarkFailed(ctx context.Context, id int64, lastError string, retry bool) error
}

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) OutboxStorage {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) EnqueueTx(ctx context.Context, tx *sql.Tx, msg *models.OutboxMessage) error {
	query := `INSERT INTO notification_outbox (kind, to_address, payload, status, attempts, created_at)
	          VALUES ($1, $2, $3, 'pending', 0, NOW()) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, msg.Kind, msg.ToAddress, []byte(msg.Payload)).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", mapPQError(err))
	}
	msg.Status = models.OutboxPending
	return nil
}

func (r *outboxRepository) Enqueue(ctx context.Context, msgs ...*models.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, msg := range msgs {
		if err := r.EnqueueTx(ctx, tx, msg); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.OutboxMessage, error) {
	query := `
		UPDATE notification_outbox
		SET status = 'processing', attempts = attempts + 1, claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE status = 'pending'
			   OR (status = 'processing' AND claimed_at < NOW() - make_interval(secs => $2))
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, to_address, payload, attempts, created_at`
	rows, err := r.db.QueryContext(ctx, query, limit, staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to claim notifications: %w", mapPQError(err))
	}
	defer rows.Close()

	var claimed []*models.OutboxMessage
	for rows.Next() {
		msg := &models.OutboxMessage{Status: models.OutboxProcessing}
		var payload []byte
		if err := rows.Scan(&msg.ID, &msg.Kind, &msg.ToAddress, &payload, &msg.Attempts, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		msg.Payload = payload
		claimed = append(claimed, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE notification_outbox SET status = 'sent', sent_at = NOW(), last_error = '' WHERE id = $1", id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, lastError string, retry bool) error {
	status := models.OutboxFailed
	if retry {
		status = models.OutboxPending
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE notification_outbox SET status = $1, last_error = $2 WHERE id = $3", status, lastError, id)
	return err
}

func (r *outboxRepository) Release(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = 'pending', attempts = GREATEST(attempts - 1, 0), claimed_at = NULL
		WHERE id = ANY($1) AND status = 'processing'`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to release notifications: %w", mapPQError(err))
	}
	return nil
}
