package service_test

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/payment"
	"github.com/linemk/toff-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// fakeStore — общее in-memory состояние для всех репозиториев.
// Записи внутри *sql.Tx применяются сразу: откат транзакции здесь не моделируется.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*models.User
	products  map[int64]*models.Product
	coupons   map[int64]*models.Coupon
	orders    map[int64]*models.Order
	carts     map[int64]*models.Cart // ключ: userID
	outbox    []*models.OutboxMessage
	favorites []*models.Favorite
	addresses map[int64]*models.Address

	failCreateItem error
	failEnqueue    error
}

var (
	_ storage.UserStorage     = (*fakeStore)(nil)
	_ storage.ProductStorage  = (*fakeStore)(nil)
	_ storage.CatalogStorage  = (*fakeStore)(nil)
	_ storage.CouponStorage   = (*fakeStore)(nil)
	_ storage.OrderStorage    = (*fakeStore)(nil)
	_ storage.CartStorage     = (*fakeStore)(nil)
	_ storage.OutboxStorage   = (*fakeStore)(nil)
	_ storage.FavoriteStorage = (*fakeStore)(nil)
	_ storage.AddressStorage  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:    100,
		users:     make(map[int64]*models.User),
		products:  make(map[int64]*models.Product),
		coupons:   make(map[int64]*models.Coupon),
		orders:    make(map[int64]*models.Order),
		carts:     make(map[int64]*models.Cart),
		addresses: make(map[int64]*models.Address),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProduct(id int64, name, price string, stock int) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Product{ID: id, Name: name, Slug: strings.ToLower(name), Price: decimal.RequireFromString(price), Stock: stock, IsActive: true}
	f.products[id] = p
	return p
}

func (f *fakeStore) addCoupon(id int64, code string, percent int, limit *int) *models.Coupon {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Coupon{
		ID:              id,
		Code:            code,
		DiscountPercent: percent,
		IsActive:        true,
		ValidFrom:       time.Now().Add(-24 * time.Hour),
		ValidTo:         time.Now().Add(24 * time.Hour),
		UsageLimit:      limit,
	}
	f.coupons[id] = c
	return c
}

func (f *fakeStore) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeStore) usedCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coupons[id].UsedCount
}

func (f *fakeStore) outboxKinds() []models.NotificationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []models.NotificationKind
	for _, m := range f.outbox {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

// users

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, storage.ErrDuplicate
		}
	}
	user.ID = f.id()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

// products

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storage.ErrProductNotFound
}

func (f *fakeStore) ListProducts(ctx context.Context, filter storage.ProductFilter) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Product
	for _, p := range f.products {
		if p.IsActive && (filter.Slug == "" || p.Slug == filter.Slug) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) LockProductsTx(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	locked := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			cp := *p
			locked[id] = &cp
		}
	}
	return locked, nil
}

func (f *fakeStore) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.Stock < quantity {
		return storage.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

// catalog

func (f *fakeStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return []*models.Category{{ID: 1, Name: "Chairs", Slug: "chairs"}}, nil
}

func (f *fakeStore) ListCollections(ctx context.Context) ([]*models.Collection, error) {
	return []*models.Collection{}, nil
}

// coupons

func (f *fakeStore) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if strings.EqualFold(c.Code, code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.ErrCouponNotFound
}

func (f *fakeStore) LockCouponTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return nil, storage.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) IncrementUsageTx(ctx context.Context, tx *sql.Tx, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.coupons[id]
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return storage.ErrCouponExhausted
	}
	c.UsedCount++
	return nil
}

// orders

func (f *fakeStore) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.ID = f.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeStore) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateItem != nil {
		return f.failCreateItem
	}
	item.ID = f.id()
	o := f.orders[item.OrderID]
	o.Items = append(o.Items, *item)
	return nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (f *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID != nil && *o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

func (f *fakeStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus, trackingNumber *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	if trackingNumber != nil {
		o.TrackingNumber = *trackingNumber
	}
	return nil
}

// carts

func (f *fakeStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		c = &models.Cart{ID: f.id(), UserID: userID}
		f.carts[userID] = c
	}
	return &models.Cart{ID: c.ID, UserID: c.UserID}, nil
}

func (f *fakeStore) cartByID(cartID int64) *models.Cart {
	for _, c := range f.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (f *fakeStore) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cartByID(cartID)
	if c == nil {
		return nil, nil
	}
	return append([]models.CartItem(nil), c.Items...), nil
}

func (f *fakeStore) AddItem(ctx context.Context, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cartByID(item.CartID)
	for i := range c.Items {
		it := &c.Items[i]
		if it.ProductID == item.ProductID && it.SelectedSize == item.SelectedSize && it.SelectedColor == item.SelectedColor {
			it.Quantity += item.Quantity
			item.ID, item.Quantity = it.ID, it.Quantity
			return nil
		}
	}
	item.ID = f.id()
	c.Items = append(c.Items, *item)
	return nil
}

func (f *fakeStore) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cartByID(cartID)
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return storage.ErrCartItemNotFound
}

func (f *fakeStore) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cartByID(cartID)
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return storage.ErrCartItemNotFound
}

func (f *fakeStore) RemoveCheckedOutItemsTx(ctx context.Context, tx *sql.Tx, userID int64, variants []models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		return nil
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		checkedOut := false
		for _, v := range variants {
			if it.ProductID == v.ProductID && it.SelectedSize == v.SelectedSize && it.SelectedColor == v.SelectedColor {
				checkedOut = true
				break
			}
		}
		if !checkedOut {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	return nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id int64, passHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	return nil
}

// outbox

func (f *fakeStore) Enqueue(ctx context.Context, msgs ...*models.OutboxMessage) error {
	for _, msg := range msgs {
		if err := f.EnqueueTx(ctx, nil, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) EnqueueTx(ctx context.Context, tx *sql.Tx, msg *models.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnqueue != nil {
		return f.failEnqueue
	}
	msg.ID = int64(len(f.outbox) + 1)
	msg.Status = models.OutboxPending
	f.outbox = append(f.outbox, msg)
	return nil
}

func (f *fakeStore) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed []*models.OutboxMessage
	for _, m := range f.outbox {
		if len(claimed) == limit {
			break
		}
		if m.Status == models.OutboxPending {
			m.Status = models.OutboxProcessing
			m.Attempts++
			cp := *m
			claimed = append(claimed, &cp)
		}
	}
	return claimed, nil
}

func (f *fakeStore) Release(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if m := f.outbox[id-1]; m.Status == models.OutboxProcessing {
			m.Status = models.OutboxPending
			m.Attempts--
		}
	}
	return nil
}

func (f *fakeStore) MarkSent(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbox[id-1].Status = models.OutboxSent
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id int64, lastError string, retry bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.outbox[id-1]
	m.LastError = lastError
	if retry {
		m.Status = models.OutboxPending
	} else {
		m.Status = models.OutboxFailed
	}
	return nil
}

// favorites

func (f *fakeStore) ListFavorites(ctx context.Context, userID int64) ([]*models.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Favorite{}
	for i := len(f.favorites) - 1; i >= 0; i-- {
		if fav := f.favorites[i]; fav.UserID == userID {
			cp := *fav
			cp.Product = f.products[fav.ProductID]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) AddFavorite(ctx context.Context, userID, productID int64) (*models.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fav := range f.favorites {
		if fav.UserID == userID && fav.ProductID == productID {
			cp := *fav
			return &cp, nil
		}
	}
	fav := &models.Favorite{ID: f.id(), UserID: userID, ProductID: productID, CreatedAt: time.Now()}
	f.favorites = append(f.favorites, fav)
	cp := *fav
	return &cp, nil
}

func (f *fakeStore) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fav := range f.favorites {
		if fav.UserID == userID && fav.ProductID == productID {
			f.favorites = append(f.favorites[:i], f.favorites[i+1:]...)
			return nil
		}
	}
	return storage.ErrFavoriteNotFound
}

// addresses

func (f *fakeStore) ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Address{}
	for _, a := range f.addresses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) GetAddress(ctx context.Context, userID, id int64) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[id]
	if !ok || a.UserID != userID {
		return nil, storage.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateAddress(ctx context.Context, addr *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr.ID = f.id()
	addr.CreatedAt = time.Now()
	f.saveAddress(addr)
	return nil
}

func (f *fakeStore) UpdateAddress(ctx context.Context, addr *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.addresses[addr.ID]
	if !ok || existing.UserID != addr.UserID {
		return storage.ErrAddressNotFound
	}
	addr.CreatedAt = existing.CreatedAt
	f.saveAddress(addr)
	return nil
}

func (f *fakeStore) saveAddress(addr *models.Address) {
	if addr.IsDefault {
		for _, a := range f.addresses {
			if a.UserID == addr.UserID {
				a.IsDefault = false
			}
		}
	}
	cp := *addr
	f.addresses[addr.ID] = &cp
}

func (f *fakeStore) DeleteAddress(ctx context.Context, userID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[id]
	if !ok || a.UserID != userID {
		return storage.ErrAddressNotFound
	}
	delete(f.addresses, id)
	return nil
}

// fakeGateway — управляемый платёжный шлюз
type fakeGateway struct {
	mu            sync.Mutex
	declineReason string
	err           error
	delay         time.Duration
	refundErr     error
	hold          *sync.WaitGroup // если задан, Authorize ждёт, пока до него дойдут все вызовы
	authorized    []decimal.Decimal
	refunded      []string
}

var _ payment.Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	if g.hold != nil {
		g.hold.Done()
		g.hold.Wait()
	}
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.declineReason != "" {
		return &payment.AuthorizeResult{Approved: false, DeclineReason: g.declineReason}, nil
	}
	g.authorized = append(g.authorized, req.Amount)
	return &payment.AuthorizeResult{Approved: true, PaymentRef: "PAY-" + req.ConversationID}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentRef string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, paymentRef)
	return g.refundErr
}

func (g *fakeGateway) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.authorized), len(g.refunded)
}

type countingWaker struct {
	mu sync.Mutex
	n  int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	w.n++
	w.mu.Unlock()
}

func (w *countingWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}
