package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/metrics"
	"github.com/linemk/toff-shop/internal/storage"
)

const sendTimeout = 30 * time.Second

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts — сколько раз пробовать отправить запись; 1 — без повторов
	MaxAttempts int
	// ClaimTimeout — через сколько запись, застрявшая в processing, забирается снова
	ClaimTimeout time.Duration
}

// Dispatcher забирает записи из outbox и отправляет их. Ошибки отправки
// фиксируются в записи и метриках, заказ они не затрагивают.
type Dispatcher struct {
	log     *slog.Logger
	repo    storage.OutboxStorage
	sender  Sender
	metrics *metrics.Metrics
	cfg     DispatcherConfig

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, repo storage.OutboxStorage, sender Sender, m *metrics.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 5 * time.Minute
	}
	return &Dispatcher{
		log:     log,
		repo:    repo,
		sender:  sender,
		metrics: m,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
	}
}

// Start запускает цикл опроса в отдельной горутине
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.loop(ctx)

	d.log.Info("notification dispatcher started",
		slog.Int("batch_size", d.cfg.BatchSize),
		slog.Duration("poll_interval", d.cfg.PollInterval),
	)
}

// Stop дожидается завершения текущей пачки или истечения ctx
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wake просит обработать очередь, не дожидаясь тика. Не блокируется.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
		// обрабатываем пачки, пока очередь не опустеет
		for {
			n, err := d.ProcessBatch(ctx)
			if err != nil || n < d.cfg.BatchSize || ctx.Err() != nil {
				break
			}
		}
	}
}

// ProcessBatch забирает и отправляет одну пачку, возвращает число обработанных записей.
// При отмене ctx неотправленные записи пачки возвращаются в pending.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	const op = "notification.Dispatcher.ProcessBatch"
	logger := d.log.With(slog.String("op", op))

	claimed, err := d.repo.ClaimPending(ctx, d.cfg.BatchSize, d.cfg.ClaimTimeout)
	if err != nil {
		logger.Error("failed to claim notifications", slog.Any("error", err))
		return 0, err
	}

	var unsent []int64
	for i, msg := range claimed {
		if ctx.Err() != nil {
			for _, rest := range claimed[i:] {
				unsent = append(unsent, rest.ID)
			}
			break
		}
		if !d.deliver(ctx, logger, msg) {
			unsent = append(unsent, msg.ID)
		}
	}

	if len(unsent) > 0 {
		logger.Info("returning unsent notifications to the queue", slog.Int("count", len(unsent)))
		if err := d.repo.Release(context.WithoutCancel(ctx), unsent); err != nil {
			logger.Error("failed to release notifications", slog.Any("error", err))
		}
	}
	return len(claimed), nil
}

// deliver отправляет одну запись. false — отправка прервана остановкой,
// запись нужно вернуть в очередь.
func (d *Dispatcher) deliver(ctx context.Context, logger *slog.Logger, msg *models.OutboxMessage) bool {
	logger = logger.With(
		slog.Int64("outbox_id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		slog.Int("attempt", msg.Attempts),
	)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err := d.sender.Send(sendCtx, msg.ToAddress, msg.Kind, msg.Payload)
	cancel()

	if err != nil && ctx.Err() != nil {
		logger.Info("notification send interrupted by shutdown")
		return false
	}

	// статус записываем даже при остановке, иначе запись останется в processing
	markCtx := context.WithoutCancel(ctx)
	if err != nil {
		retry := msg.Attempts < d.cfg.MaxAttempts
		logger.Warn("notification send failed", slog.Any("error", err), slog.Bool("retry", retry))
		d.metrics.Notification(string(msg.Kind), "failed")
		if markErr := d.repo.MarkFailed(markCtx, msg.ID, err.Error(), retry); markErr != nil {
			logger.Error("failed to mark notification as failed", slog.Any("error", markErr))
		}
		return true
	}

	d.metrics.Notification(string(msg.Kind), "sent")
	if markErr := d.repo.MarkSent(markCtx, msg.ID); markErr != nil {
		logger.Error("failed to mark notification as sent", slog.Any("error", markErr))
		return true
	}
	logger.Info("notification sent")
	return true
}
