package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/notification"
	"github.com/linemk/toff-shop/internal/storage"
)

type OrderService struct {
	log    *slog.Logger
	db     *sql.DB
	orders storage.OrderStorage
	outbox storage.OutboxStorage
	waker  Waker
}

func NewOrderService(log *slog.Logger, db *sql.DB, orders storage.OrderStorage, outbox storage.OutboxStorage, waker Waker) *OrderService {
	return &OrderService{log: log, db: db, orders: orders, outbox: outbox, waker: waker}
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

// GetOrder отдаёт заказ владельцу или сотруднику магазина
func (s *OrderService) GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !isAdmin && (order.UserID == nil || *order.UserID != userID) {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderAccessDenied)
	}
	return order, nil
}

// UpdateStatus переводит заказ в любой известный статус. Порядок статусов не проверяется.
// При переходе в shipped в той же транзакции ставится письмо с трек-номером;
// его отправка идёт в фоне и на статус не влияет.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus, trackingNumber string) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("status", string(status)))

	if !status.IsValid() {
		logger.Warn("unknown status")
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownStatus, status)
	}

	var tracking *string
	if t := strings.TrimSpace(trackingNumber); t != "" {
		tracking = &t
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	previous := order.Status

	if err := s.orders.UpdateStatusTx(ctx, tx, orderID, status, tracking); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update status: %w", op, err)
	}
	order.Status = status
	if tracking != nil {
		order.TrackingNumber = *tracking
	}

	notify := status == models.StatusShipped && previous != models.StatusShipped && order.Email != ""
	if notify {
		// письмо не должно откатывать смену статуса: ошибка очереди гасится точкой сохранения
		if err := storage.Savepoint(ctx, tx, shippedNotificationSavepoint); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Error("failed to create savepoint", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create savepoint: %w", op, err)
		}
		if err := s.enqueueShipped(ctx, tx, order); err != nil {
			logger.Error("failed to enqueue shipping notification, status change is kept", slog.Any("error", err))
			notify = false
			if spErr := storage.RollbackToSavepoint(ctx, tx, shippedNotificationSavepoint); spErr != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					logger.Error("transaction rollback failed", slog.Any("error", rbErr))
				}
				logger.Error("failed to roll back to savepoint", slog.Any("error", spErr))
				return nil, fmt.Errorf("%s: failed to roll back to savepoint: %w", op, spErr)
			}
		} else if err := storage.ReleaseSavepoint(ctx, tx, shippedNotificationSavepoint); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Error("failed to release savepoint", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to release savepoint: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	if notify && s.waker != nil {
		s.waker.Wake()
	}

	logger.Info("order status updated", slog.String("previous", string(previous)))
	return order, nil
}

const shippedNotificationSavepoint = "order_shipped_notification"

func (s *OrderService) enqueueShipped(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	payload, err := json.Marshal(notification.OrderShippedData{
		OrderID:        order.ID,
		FullName:       order.FullName,
		TrackingNumber: order.TrackingNumber,
	})
	if err != nil {
		return err
	}
	return s.outbox.EnqueueTx(ctx, tx, &models.OutboxMessage{
		Kind:      models.NotificationOrderShipped,
		ToAddress: order.Email,
		Payload:   payload,
	})
}
