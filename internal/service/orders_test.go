package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/metrics"
	"github.com/linemk/toff-shop/internal/notification"
	"github.com/linemk/toff-shop/internal/service"
	"github.com/linemk/toff-shop/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderService(t *testing.T) (*service.OrderService, *fakeStore, sqlmock.Sqlmock, *countingWaker) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := newFakeStore()
	waker := &countingWaker{}
	return service.NewOrderService(testLogger(), db, store, store, waker), store, mock, waker
}

func seedOrder(t *testing.T, store *fakeStore, userID int64, email string) *models.Order {
	t.Helper()
	order := &models.Order{UserID: &userID, FullName: "Can Öztürk", Email: email, Status: models.StatusOrderConfirmed}
	require.NoError(t, store.CreateOrderTx(context.Background(), nil, order))
	return order
}

type failingSender struct{ calls int }

func (s *failingSender) Send(ctx context.Context, to string, kind models.NotificationKind, data json.RawMessage) error {
	s.calls++
	return errors.New("smtp: 421 service not available")
}

func TestOrderService_UpdateStatus_ShippedEnqueuesOnce(t *testing.T) {
	svc, store, mock, waker := newOrderService(t)
	order := seedOrder(t, store, 1, "can@example.com")

	mock.ExpectBegin()
	expectNotificationSavepoint(mock, true)
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	updated, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, " TRK-123 ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)
	assert.Equal(t, "TRK-123", updated.TrackingNumber)

	// повторный shipped не ставит второе письмо
	_, err = svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "")
	require.NoError(t, err)

	require.Equal(t, []models.NotificationKind{models.NotificationOrderShipped}, store.outboxKinds())
	var data notification.OrderShippedData
	require.NoError(t, json.Unmarshal(store.outbox[0].Payload, &data))
	assert.Equal(t, "TRK-123", data.TrackingNumber)
	assert.Equal(t, order.ID, data.OrderID)
	assert.Equal(t, 1, waker.count())

	stored, err := store.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRK-123", stored.TrackingNumber, "empty tracking number keeps the previous one")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_UpdateStatus_FailedSendKeepsStatus(t *testing.T) {
	svc, store, mock, _ := newOrderService(t)
	order := seedOrder(t, store, 1, "can@example.com")
	mock.ExpectBegin()
	expectNotificationSavepoint(mock, true)
	mock.ExpectCommit()

	_, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "TRK-9")
	require.NoError(t, err)

	sender := &failingSender{}
	d := notification.NewDispatcher(testLogger(), store, sender, metrics.New(prometheus.NewRegistry()),
		notification.DispatcherConfig{BatchSize: 10, MaxAttempts: 1})

	n, err := d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = d.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "failed notification is not retried")

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, models.OutboxFailed, store.outbox[0].Status)

	stored, err := store.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, stored.Status)
}

func TestOrderService_UpdateStatus_AnyKnownTransition(t *testing.T) {
	svc, store, mock, _ := newOrderService(t)
	order := seedOrder(t, store, 1, "")
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	// переходы не ограничены: из delivered можно вернуться в preparing
	_, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusDelivered, "")
	require.NoError(t, err)
	updated, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusPreparing, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, updated.Status)
	assert.Empty(t, store.outboxKinds())
}

func TestOrderService_UpdateStatus_ShippedWithoutEmail(t *testing.T) {
	svc, store, mock, waker := newOrderService(t)
	order := seedOrder(t, store, 1, "")
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "TRK-1")
	require.NoError(t, err)
	assert.Empty(t, store.outboxKinds())
	assert.Equal(t, 0, waker.count())
}

func TestOrderService_UpdateStatus_UnknownStatus(t *testing.T) {
	svc, store, mock, _ := newOrderService(t)
	order := seedOrder(t, store, 1, "can@example.com")

	_, err := svc.UpdateStatus(context.Background(), order.ID, models.OrderStatus("lost"), "")
	assert.True(t, errors.Is(err, service.ErrUnknownStatus))

	stored, err := store.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrderConfirmed, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet(), "no transaction for unknown status")
}

func TestOrderService_UpdateStatus_OrderNotFound(t *testing.T) {
	svc, _, mock, _ := newOrderService(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), 999, models.StatusShipped, "")
	assert.True(t, errors.Is(err, storage.ErrOrderNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_UpdateStatus_EnqueueFailureKeepsTransition(t *testing.T) {
	svc, store, mock, waker := newOrderService(t)
	order := seedOrder(t, store, 1, "can@example.com")
	store.failEnqueue = errors.New("outbox unavailable")
	mock.ExpectBegin()
	expectNotificationSavepoint(mock, false)
	mock.ExpectCommit()

	updated, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "TRK-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)
	assert.Empty(t, store.outboxKinds())
	assert.Equal(t, 0, waker.count())

	stored, err := store.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, stored.Status)
	assert.Equal(t, "TRK-1", stored.TrackingNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderService_UpdateStatus_SavepointFailureRollsBack(t *testing.T) {
	svc, store, mock, _ := newOrderService(t)
	order := seedOrder(t, store, 1, "can@example.com")
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT order_shipped_notification").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), order.ID, models.StatusShipped, "TRK-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// expectNotificationSavepoint ожидает точку сохранения вокруг постановки письма:
// released=true — письмо поставлено, false — откат к точке сохранения
func expectNotificationSavepoint(mock sqlmock.Sqlmock, released bool) {
	mock.ExpectExec("^SAVEPOINT order_shipped_notification$").WillReturnResult(sqlmock.NewResult(0, 0))
	if released {
		mock.ExpectExec("^RELEASE SAVEPOINT order_shipped_notification$").WillReturnResult(sqlmock.NewResult(0, 0))
		return
	}
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT order_shipped_notification$").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestOrderService_GetOrder_Access(t *testing.T) {
	svc, store, _, _ := newOrderService(t)
	order := seedOrder(t, store, 1, "can@example.com")

	got, err := svc.GetOrder(context.Background(), 1, false, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(context.Background(), 2, false, order.ID)
	assert.True(t, errors.Is(err, service.ErrOrderAccessDenied))

	_, err = svc.GetOrder(context.Background(), 2, true, order.ID)
	assert.NoError(t, err, "staff can read any order")

	_, err = svc.GetOrder(context.Background(), 1, false, 12345)
	assert.True(t, errors.Is(err, storage.ErrOrderNotFound))
}

func TestOrderService_ListOrders(t *testing.T) {
	svc, store, _, _ := newOrderService(t)
	seedOrder(t, store, 1, "")
	seedOrder(t, store, 1, "")
	seedOrder(t, store, 2, "")

	orders, err := svc.ListOrders(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = svc.ListOrders(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
