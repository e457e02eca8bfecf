package payment

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SandboxGateway — тестовый шлюз без сети. Одобряет всё, кроме карт из списка отказа.
// Проведённые платежи хранятся в памяти, чтобы Refund мог проверить ссылку.
type SandboxGateway struct {
	log      *slog.Logger
	declined map[string]struct{}

	mu       sync.Mutex
	payments map[string]decimal.Decimal
}

func NewSandboxGateway(log *slog.Logger, declineCards []string) *SandboxGateway {
	declined := make(map[string]struct{}, len(declineCards))
	for _, c := range declineCards {
		declined[normalizeCard(c)] = struct{}{}
	}
	return &SandboxGateway{
		log:      log,
		declined: declined,
		payments: make(map[string]decimal.Decimal),
	}
}

func (g *SandboxGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	const op = "payment.SandboxGateway.Authorize"
	logger := g.log.With(slog.String("op", op), slog.String("conversation_id", req.ConversationID))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.Card != nil {
		if _, ok := g.declined[normalizeCard(req.Card.Number)]; ok {
			logger.Info("sandbox card declined")
			return &AuthorizeResult{
				Approved:       false,
				ConversationID: req.ConversationID,
				DeclineReason:  "card declined",
			}, nil
		}
	}

	ref := "SANDBOX-" + uuid.NewString()
	g.mu.Lock()
	g.payments[ref] = req.Amount
	g.mu.Unlock()

	logger.Info("sandbox payment authorized", slog.String("payment_ref", ref), slog.String("amount", req.Amount.StringFixed(2)))
	return &AuthorizeResult{Approved: true, PaymentRef: ref, ConversationID: req.ConversationID}, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, paymentRef string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	paid, ok := g.payments[paymentRef]
	if !ok {
		return ErrGateway
	}
	if amount.GreaterThan(paid) {
		return ErrGateway
	}
	g.payments[paymentRef] = paid.Sub(amount)
	g.log.Info("sandbox payment refunded", slog.String("payment_ref", paymentRef), slog.String("amount", amount.StringFixed(2)))
	return nil
}

func normalizeCard(number string) string {
	return strings.ReplaceAll(strings.TrimSpace(number), " ", "")
}
