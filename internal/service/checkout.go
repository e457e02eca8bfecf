package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/idempotency"
	"github.com/linemk/toff-shop/internal/metrics"
	"github.com/linemk/toff-shop/internal/notification"
	"github.com/linemk/toff-shop/internal/payment"
	"github.com/linemk/toff-shop/internal/storage"
	"github.com/shopspring/decimal"
)

const refundTimeout = 30 * time.Second

const (
	// MaxItemQuantity — потолок количества одного товара в заказе, по одной строке и в сумме
	MaxItemQuantity = 1000
	// MaxCheckoutLines — потолок числа строк в одном заказе
	MaxCheckoutLines = 100
)

// ShippingInfo — адрес доставки и контакты покупателя
type ShippingInfo struct {
	FullName string
	Email    string
	Address  string
	City     string
	Phone    string
}

// CheckoutItem — строка корзины в запросе на оформление
type CheckoutItem struct {
	ProductID     int64
	Quantity      int
	SelectedSize  string
	SelectedColor string
}

type CheckoutRequest struct {
	UserID         *int64 // nil — гостевой заказ
	Shipping       ShippingInfo
	Items          []CheckoutItem
	CouponCode     string
	CustomerNote   string
	Card           *payment.Card
	IdempotencyKey string
}

// OrderConfirmation — результат оформления. Replayed означает, что заказ с этим
// ключом идемпотентности уже был создан раньше и возвращён повторно.
type OrderConfirmation struct {
	Order    *models.Order
	Replayed bool
}

// Waker будит фоновую отправку уведомлений после коммита
type Waker interface {
	Wake()
}

type CheckoutConfig struct {
	PaymentTimeout time.Duration
	LockTimeout    time.Duration
	IdempotencyTTL time.Duration
}

type CheckoutRepos struct {
	Users    storage.UserStorage
	Products storage.ProductStorage
	Coupons  storage.CouponStorage
	Orders   storage.OrderStorage
	Carts    storage.CartStorage
	Outbox   storage.OutboxStorage
}

type CheckoutService struct {
	log     *slog.Logger
	db      *sql.DB
	repos   CheckoutRepos
	gateway payment.Gateway
	idem    idempotency.Store
	metrics *metrics.Metrics
	waker   Waker
	cfg     CheckoutConfig
	now     func() time.Time
}

func NewCheckoutService(
	log *slog.Logger,
	db *sql.DB,
	repos CheckoutRepos,
	gateway payment.Gateway,
	idem idempotency.Store,
	m *metrics.Metrics,
	waker Waker,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &CheckoutService{
		log:     log,
		db:      db,
		repos:   repos,
		gateway: gateway,
		idem:    idem,
		metrics: m,
		waker:   waker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// stockNeed — суммарное количество одного товара по всем строкам корзины
type stockNeed struct {
	product  *models.Product
	quantity int
}

// checkoutPlan — всё, что посчитано до оплаты и нужно для коммита
type checkoutPlan struct {
	lines    []PricedLine
	needs    []*stockNeed // в порядке возрастания product id
	coupon   *models.Coupon
	subtotal decimal.Decimal
	discount decimal.Decimal
	total    decimal.Decimal
	email    string
}

// CreateOrder оформляет заказ: проверка полей, остатков и купона, оплата,
// затем одна транзакция с заказом, списанием остатков и купона.
// Ошибки бизнес-правил возвращаются как *CheckoutError.
func (s *CheckoutService) CreateOrder(ctx context.Context, req CheckoutRequest) (*OrderConfirmation, error) {
	conf, err := s.createOrder(ctx, req)

	var ce *CheckoutError
	switch {
	case err == nil && conf.Replayed:
		s.metrics.CheckoutResult("replayed")
	case err == nil:
		s.metrics.CheckoutResult("success")
	case errors.As(err, &ce):
		s.metrics.CheckoutResult(string(ce.Kind))
	default:
		s.metrics.CheckoutResult(string(KindPersistenceFailure))
	}
	return conf, err
}

func (s *CheckoutService) createOrder(ctx context.Context, req CheckoutRequest) (*OrderConfirmation, error) {
	const op = "service.CheckoutService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int("lines", len(req.Items)))
	if req.UserID != nil {
		logger = logger.With(slog.Int64("userID", *req.UserID))
	}
	logger.Info("starting checkout")

	if err := validateCheckout(&req); err != nil {
		logger.Warn("invalid checkout request", slog.String("reason", err.Message))
		return nil, err
	}

	if req.IdempotencyKey != "" {
		logger = logger.With(slog.String("idempotency_key", req.IdempotencyKey))

		acquired, err := s.idem.Acquire(ctx, req.IdempotencyKey, s.cfg.IdempotencyTTL)
		if err != nil {
			logger.Error("failed to acquire idempotency key", slog.Any("error", err))
			return nil, persistenceFailure("idempotency store unavailable", err)
		}
		if !acquired {
			logger.Warn("checkout with the same idempotency key is in progress")
			return nil, &CheckoutError{Kind: KindCheckoutInProgress, Message: "checkout with this idempotency key is already in progress"}
		}
		defer func() {
			if err := s.idem.Release(context.WithoutCancel(ctx), req.IdempotencyKey); err != nil {
				logger.Error("failed to release idempotency key", slog.Any("error", err))
			}
		}()

		existing, err := s.repos.Orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		switch {
		case err == nil && !sameRequest(existing, &req):
			logger.Warn("idempotency key reused for a different request", slog.Int64("orderID", existing.ID))
			return nil, invalidInput("idempotency key was already used for a different request")
		case err == nil:
			logger.Info("returning previously created order", slog.Int64("orderID", existing.ID))
			return &OrderConfirmation{Order: existing, Replayed: true}, nil
		case !errors.Is(err, storage.ErrOrderNotFound):
			logger.Error("failed to look up order by idempotency key", slog.Any("error", err))
			return nil, persistenceFailure("failed to look up order", err)
		}
	}

	plan, err := s.plan(ctx, logger, &req)
	if err != nil {
		return nil, err
	}

	paymentRef, err := s.authorize(ctx, logger, &req, plan)
	if err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("payment_ref", paymentRef))

	order, err := s.persist(ctx, logger, &req, plan, paymentRef)
	if err != nil {
		s.compensate(logger, paymentRef, plan.total)
		return nil, err
	}

	if s.waker != nil && plan.email != "" {
		s.waker.Wake()
	}

	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("total", order.TotalAmount.StringFixed(2)))
	return &OrderConfirmation{Order: order}, nil
}

// requestFingerprint — SHA-256 от владельца и содержимого заказа. Карта не входит:
// повтор с другой картой по тому же ключу остаётся повтором.
func requestFingerprint(req *CheckoutRequest) string {
	payload, _ := json.Marshal(struct {
		UserID   *int64         `json:"user_id"`
		Shipping ShippingInfo   `json:"shipping"`
		Items    []CheckoutItem `json:"items"`
		Coupon   string         `json:"coupon"`
		Note     string         `json:"note"`
	}{
		UserID:   req.UserID,
		Shipping: req.Shipping,
		Items:    req.Items,
		Coupon:   strings.ToUpper(req.CouponCode),
		Note:     req.CustomerNote,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// sameRequest сверяет сохранённый заказ с повторным запросом по тому же ключу
func sameRequest(order *models.Order, req *CheckoutRequest) bool {
	if !sameUser(order.UserID, req.UserID) {
		return false
	}
	if order.IdempotencyFingerprint == nil {
		return true
	}
	return *order.IdempotencyFingerprint == requestFingerprint(req)
}

func sameUser(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func validateCheckout(req *CheckoutRequest) *CheckoutError {
	req.Shipping.FullName = strings.TrimSpace(req.Shipping.FullName)
	req.Shipping.Address = strings.TrimSpace(req.Shipping.Address)
	req.Shipping.City = strings.TrimSpace(req.Shipping.City)
	req.Shipping.Phone = strings.TrimSpace(req.Shipping.Phone)
	req.Shipping.Email = strings.TrimSpace(req.Shipping.Email)
	req.CouponCode = strings.TrimSpace(req.CouponCode)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	var missing []string
	if req.Shipping.FullName == "" {
		missing = append(missing, "full_name")
	}
	if req.Shipping.Address == "" {
		missing = append(missing, "address")
	}
	if req.Shipping.City == "" {
		missing = append(missing, "city")
	}
	if req.Shipping.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return invalidInput("missing required shipping fields: " + strings.Join(missing, ", "))
	}
	if len(req.Items) == 0 {
		return invalidInput("cart is empty")
	}
	if len(req.Items) > MaxCheckoutLines {
		return invalidInput(fmt.Sprintf("too many lines, at most %d allowed", MaxCheckoutLines))
	}
	for _, it := range req.Items {
		if it.Quantity < 1 || it.Quantity > MaxItemQuantity {
			return invalidInput(fmt.Sprintf("item quantity must be between 1 and %d", MaxItemQuantity))
		}
	}
	if len(req.IdempotencyKey) > idempotency.MaxKeyLength {
		return invalidInput("idempotency key is too long")
	}
	return nil
}

// plan проверяет остатки без блокировок, считает цены и купон. Ничего не пишет.
func (s *CheckoutService) plan(ctx context.Context, logger *slog.Logger, req *CheckoutRequest) (*checkoutPlan, error) {
	plan := &checkoutPlan{email: req.Shipping.Email}

	byID := make(map[int64]*stockNeed)
	var order []int64 // порядок первого появления, для стабильного списка нехватки
	for _, it := range req.Items {
		need, ok := byID[it.ProductID]
		if !ok {
			p, err := s.repos.Products.GetProductByID(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, storage.ErrProductNotFound) {
					logger.Warn("product not found", slog.Int64("productID", it.ProductID))
					return nil, productNotFound(it.ProductID)
				}
				logger.Error("failed to get product", slog.Int64("productID", it.ProductID), slog.Any("error", err))
				return nil, persistenceFailure("failed to load product", err)
			}
			if !p.IsActive {
				logger.Warn("product is inactive", slog.Int64("productID", it.ProductID))
				return nil, productNotFound(it.ProductID)
			}
			need = &stockNeed{product: p}
			byID[it.ProductID] = need
			order = append(order, it.ProductID)
		}
		if it.Quantity > MaxItemQuantity-need.quantity {
			logger.Warn("total quantity over limit", slog.Int64("productID", it.ProductID))
			return nil, invalidInput(fmt.Sprintf("total quantity of product %d exceeds %d", it.ProductID, MaxItemQuantity))
		}
		need.quantity += it.Quantity

		unit, total := PriceLine(need.product, it.Quantity)
		plan.lines = append(plan.lines, PricedLine{
			Product:       need.product,
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			UnitPrice:     unit,
			LineTotal:     total,
		})
	}

	var shortfalls []StockShortfall
	for _, id := range order {
		need := byID[id]
		if need.quantity > need.product.Stock {
			shortfalls = append(shortfalls, StockShortfall{
				ProductID:   id,
				ProductName: need.product.Name,
				Requested:   need.quantity,
				Available:   need.product.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		logger.Warn("insufficient stock", slog.Int("shortfalls", len(shortfalls)))
		return nil, insufficientStock(shortfalls)
	}

	plan.needs = sortedNeeds(byID)
	plan.subtotal = Subtotal(plan.lines)
	plan.discount = decimal.Zero
	plan.total = plan.subtotal

	if req.CouponCode != "" {
		coupon, err := s.repos.Coupons.GetCouponByCode(ctx, req.CouponCode)
		if err != nil {
			if errors.Is(err, storage.ErrCouponNotFound) {
				logger.Warn("coupon not found", slog.String("code", req.CouponCode))
				return nil, couponError(models.CouponNotFound)
			}
			logger.Error("failed to get coupon", slog.Any("error", err))
			return nil, persistenceFailure("failed to load coupon", err)
		}
		if reason := coupon.Check(s.now()); reason != "" {
			logger.Warn("coupon rejected", slog.String("code", coupon.Code), slog.String("reason", string(reason)))
			return nil, couponError(reason)
		}
		plan.coupon = coupon
		plan.discount, plan.total = ApplyCoupon(plan.subtotal, coupon.DiscountPercent)
	}

	if plan.email == "" && req.UserID != nil {
		user, err := s.repos.Users.GetUserByID(ctx, *req.UserID)
		switch {
		case err == nil:
			plan.email = user.Email
		case errors.Is(err, storage.ErrUserNotFound):
			// токен пережил удалённого пользователя, заказ оформляется без письма
		default:
			logger.Error("failed to get user", slog.Any("error", err))
			return nil, persistenceFailure("failed to load user", err)
		}
	}

	return plan, nil
}

func (s *CheckoutService) authorize(ctx context.Context, logger *slog.Logger, req *CheckoutRequest, plan *checkoutPlan) (string, error) {
	payCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	items := make([]payment.BasketItem, 0, len(plan.lines))
	for _, l := range plan.lines {
		items = append(items, payment.BasketItem{ProductID: l.Product.ID, Name: l.Product.Name, Price: l.LineTotal})
	}

	res, err := s.gateway.Authorize(payCtx, payment.AuthorizeRequest{
		ConversationID: uuid.NewString(),
		Amount:         plan.total,
		Subtotal:       plan.subtotal,
		Card:           req.Card,
		Buyer: payment.Buyer{
			FullName: req.Shipping.FullName,
			Email:    plan.email,
			Address:  req.Shipping.Address,
			City:     req.Shipping.City,
			Phone:    req.Shipping.Phone,
		},
		Items: items,
	})
	if err != nil {
		detail := "payment gateway unavailable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(payCtx.Err(), context.DeadlineExceeded) {
			detail = "payment gateway timeout"
		}
		logger.Error("payment authorization failed", slog.Any("error", err))
		return "", paymentFailed(detail, err)
	}
	if !res.Approved {
		logger.Warn("payment declined", slog.String("reason", res.DeclineReason))
		return "", paymentFailed(res.DeclineReason, nil)
	}
	return res.PaymentRef, nil
}

// persist — единственная транзакция оформления. Остатки и купон перепроверяются
// под блокировкой строк: проверка в plan была без блокировок.
func (s *CheckoutService) persist(ctx context.Context, logger *slog.Logger, req *CheckoutRequest, plan *checkoutPlan, paymentRef string) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, persistenceFailure("failed to begin transaction", err)
	}
	rollback := func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
	}

	if err := storage.SetLockTimeoutTx(ctx, tx, s.cfg.LockTimeout); err != nil {
		rollback()
		logger.Error("failed to set lock timeout", slog.Any("error", err))
		return nil, persistenceFailure("failed to set lock timeout", err)
	}

	order := &models.Order{
		UserID:         req.UserID,
		FullName:       req.Shipping.FullName,
		Email:          plan.email,
		Address:        req.Shipping.Address,
		City:           req.Shipping.City,
		Phone:          req.Shipping.Phone,
		TotalAmount:    plan.total,
		DiscountAmount: plan.discount,
		Status:         models.StatusOrderConfirmed,
		PaymentID:      paymentRef,
		CustomerNote:   req.CustomerNote,
	}
	if plan.coupon != nil {
		order.CouponID = &plan.coupon.ID
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		fingerprint := requestFingerprint(req)
		order.IdempotencyKey = &key
		order.IdempotencyFingerprint = &fingerprint
	}
	if err := s.repos.Orders.CreateOrderTx(ctx, tx, order); err != nil {
		rollback()
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, persistenceFailure("failed to create order", err)
	}

	ids := make([]int64, 0, len(plan.needs))
	for _, n := range plan.needs {
		ids = append(ids, n.product.ID)
	}
	locked, err := s.repos.Products.LockProductsTx(ctx, tx, ids)
	if err != nil {
		rollback()
		logger.Error("failed to lock products", slog.Any("error", err))
		return nil, persistenceFailure("failed to lock products", err)
	}

	var shortfalls []StockShortfall
	for _, n := range plan.needs {
		p, ok := locked[n.product.ID]
		if !ok || !p.IsActive {
			rollback()
			logger.Warn("product disappeared before commit", slog.Int64("productID", n.product.ID))
			return nil, productNotFound(n.product.ID)
		}
		if p.Stock < n.quantity {
			shortfalls = append(shortfalls, StockShortfall{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   n.quantity,
				Available:   p.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		rollback()
		logger.Warn("insufficient stock under lock", slog.Int("shortfalls", len(shortfalls)))
		return nil, insufficientStock(shortfalls)
	}

	items := make([]models.OrderItem, 0, len(plan.lines))
	for _, l := range plan.lines {
		productID := l.Product.ID
		item := models.OrderItem{
			OrderID:       order.ID,
			ProductID:     &productID,
			ProductName:   l.Product.Name,
			Price:         l.UnitPrice,
			Quantity:      l.Quantity,
			SelectedSize:  l.SelectedSize,
			SelectedColor: l.SelectedColor,
		}
		if err := s.repos.Orders.CreateOrderItemTx(ctx, tx, &item); err != nil {
			rollback()
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, persistenceFailure("failed to create order item", err)
		}
		items = append(items, item)
	}

	for _, n := range plan.needs {
		if err := s.repos.Products.DecrementStockTx(ctx, tx, n.product.ID, n.quantity); err != nil {
			rollback()
			if errors.Is(err, storage.ErrInsufficientStock) {
				p := locked[n.product.ID]
				return nil, insufficientStock([]StockShortfall{{
					ProductID: p.ID, ProductName: p.Name, Requested: n.quantity, Available: p.Stock,
				}})
			}
			logger.Error("failed to decrement stock", slog.Int64("productID", n.product.ID), slog.Any("error", err))
			return nil, persistenceFailure("failed to decrement stock", err)
		}
	}

	if plan.coupon != nil {
		coupon, err := s.repos.Coupons.LockCouponTx(ctx, tx, plan.coupon.ID)
		if err != nil {
			rollback()
			if errors.Is(err, storage.ErrCouponNotFound) {
				return nil, couponError(models.CouponNotFound)
			}
			logger.Error("failed to lock coupon", slog.Any("error", err))
			return nil, persistenceFailure("failed to lock coupon", err)
		}
		if reason := coupon.Check(s.now()); reason != "" {
			rollback()
			logger.Warn("coupon rejected under lock", slog.String("reason", string(reason)))
			return nil, couponError(reason)
		}
		if err := s.repos.Coupons.IncrementUsageTx(ctx, tx, coupon.ID); err != nil {
			rollback()
			if errors.Is(err, storage.ErrCouponExhausted) {
				return nil, couponError(models.CouponLimitExhausted)
			}
			logger.Error("failed to increment coupon usage", slog.Any("error", err))
			return nil, persistenceFailure("failed to increment coupon usage", err)
		}
	}

	if req.UserID != nil {
		variants := make([]models.CartItem, len(req.Items))
		for i, it := range req.Items {
			variants[i] = models.CartItem{ProductID: it.ProductID, SelectedSize: it.SelectedSize, SelectedColor: it.SelectedColor}
		}
		if err := s.repos.Carts.RemoveCheckedOutItemsTx(ctx, tx, *req.UserID, variants); err != nil {
			rollback()
			logger.Error("failed to remove checked out cart items", slog.Any("error", err))
			return nil, persistenceFailure("failed to update cart", err)
		}
	}

	if plan.email != "" {
		msg, err := confirmationMessage(order, items)
		if err == nil {
			err = s.repos.Outbox.EnqueueTx(ctx, tx, msg)
		}
		if err != nil {
			rollback()
			logger.Error("failed to enqueue order confirmation", slog.Any("error", err))
			return nil, persistenceFailure("failed to enqueue notification", err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, persistenceFailure("failed to commit order", err)
	}

	order.Items = items
	return order, nil
}

// compensate возвращает деньги за заказ, который не удалось сохранить.
// Если и возврат не прошёл, платёж остаётся без заказа — это пишется в лог отдельной строкой.
func (s *CheckoutService) compensate(logger *slog.Logger, paymentRef string, amount decimal.Decimal) {
	ctx, cancel := context.WithTimeout(context.Background(), refundTimeout)
	defer cancel()

	if err := s.gateway.Refund(ctx, paymentRef, amount); err != nil {
		logger.Error("reconciliation required: payment captured but order not recorded",
			slog.String("payment_ref", paymentRef),
			slog.String("amount", amount.StringFixed(2)),
			slog.Any("error", err),
		)
		s.metrics.Compensation(metrics.CompensationReconciliation)
		return
	}
	logger.Warn("payment refunded after failed order persistence", slog.String("amount", amount.StringFixed(2)))
	s.metrics.Compensation(metrics.CompensationRefunded)
}

func confirmationMessage(order *models.Order, items []models.OrderItem) (*models.OutboxMessage, error) {
	data := notification.OrderConfirmationData{
		OrderID:        order.ID,
		FullName:       order.FullName,
		TotalAmount:    order.TotalAmount.StringFixed(2),
		DiscountAmount: order.DiscountAmount.StringFixed(2),
	}
	for _, it := range items {
		data.Items = append(data.Items, notification.LineData{
			Name:     it.ProductName,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &models.OutboxMessage{
		Kind:      models.NotificationOrderConfirmation,
		ToAddress: order.Email,
		Payload:   payload,
	}, nil
}

func sortedNeeds(byID map[int64]*stockNeed) []*stockNeed {
	needs := make([]*stockNeed, 0, len(byID))
	for _, n := range byID {
		needs = append(needs, n)
	}
	// ids по возрастанию: тот же порядок, что и у FOR UPDATE ... ORDER BY id
	sort.Slice(needs, func(i, j int) bool { return needs[i].product.ID < needs[j].product.ID })
	return needs
}
