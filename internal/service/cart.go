package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/toff-shop/internal/domain/models"
	"github.com/linemk/toff-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// CartView — корзина с посчитанной суммой
type CartView struct {
	*models.Cart
	Total decimal.Decimal `json:"total"`
}

type CartService struct {
	log      *slog.Logger
	carts    storage.CartStorage
	products storage.ProductStorage
}

func NewCartService(log *slog.Logger, carts storage.CartStorage, products storage.ProductStorage) *CartService {
	return &CartService{log: log, carts: carts, products: products}
}

func (s *CartService) GetCart(ctx context.Context, userID int64) (*CartView, error) {
	const op = "service.CartService.GetCart"

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		s.log.Error("failed to get cart", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	items, err := s.carts.GetCartItems(ctx, cart.ID)
	if err != nil {
		s.log.Error("failed to get cart items", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cart.Items = items
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return &CartView{Cart: cart, Total: total}, nil
}

// AddItem кладёт товар в корзину; тот же вариант (размер, цвет) увеличивает количество
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int, size, color string) (*models.CartItem, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID))

	if quantity < 1 || quantity > MaxItemQuantity {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	p, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrProductUnavailable)
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	item := &models.CartItem{
		CartID:        cart.ID,
		ProductID:     p.ID,
		ProductName:   p.Name,
		UnitPrice:     p.UnitPrice(),
		Quantity:      quantity,
		SelectedSize:  size,
		SelectedColor: color,
	}
	if err := s.carts.AddItem(ctx, item); err != nil {
		logger.Error("failed to add cart item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("cart item added", slog.Int64("itemID", item.ID), slog.Int("quantity", item.Quantity))
	return item, nil
}

func (s *CartService) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) error {
	const op = "service.CartService.UpdateItem"

	if quantity < 1 || quantity > MaxItemQuantity {
		return fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}
	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.carts.UpdateItemQuantity(ctx, cart.ID, itemID, quantity); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	const op = "service.CartService.RemoveItem"

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.carts.RemoveItem(ctx, cart.ID, itemID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
