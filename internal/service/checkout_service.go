package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/mailer"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/validator"
	"github.com/shopspring/decimal"
)

type CheckoutInput struct {
	ShippingAddress    string `json:"shipping_address"`
	ShippingCity       string `json:"shipping_city"`
	ShippingPostalCode string `json:"shipping_postal_code"`
	ShippingCountry    string `json:"shipping_country"`
	PaymentMethod      string `json:"payment_method"`
	CardNumber         string `json:"card_number"`
}

type PlaceOrderResult struct {
	OrderID int64           `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
}

type PricedLine struct {
	Product  *domain.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CheckoutPreview struct {
	Lines []PricedLine    `json:"items"`
	Total decimal.Decimal `json:"total"`
	User  *domain.User    `json:"user"`
}

type CheckoutService struct {
	store    repository.RepoInterface
	payments payment.Provider
	notifier mailer.Notifier
	cache    cache.ProductCache
}

func NewCheckoutService(
	store repository.RepoInterface,
	payments payment.Provider,
	notifier mailer.Notifier,
	productCache cache.ProductCache) *CheckoutService {
	if productCache == nil {
		productCache = cache.NopCache{}
	}
	return &CheckoutService{
		store:    store,
		payments: payments,
		notifier: notifier,
		cache:    productCache,
	}
}

// Preview prices the cart for the checkout form.
func (s *CheckoutService) Preview(ctx context.Context, state *session.State) (*CheckoutPreview, error) {
	if err := auth.RequireAuthenticated(state); err != nil {
		return nil, err
	}
	lines := state.CartLines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	priced, total, err := priceCart(ctx, s.store.Products(), lines, true)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().FindByID(ctx, state.UserID())
	if err != nil {
		return nil, fmt.Errorf("load checkout user: %w", err)
	}

	return &CheckoutPreview{Lines: priced, Total: total, User: user}, nil
}

// PlaceOrder turns the session cart into a pending order. The order header,
// its items, the stock decrements and the outbox event commit together or not
// at all. The cart is only cleared after a successful commit.
func (s *CheckoutService) PlaceOrder(ctx context.Context, state *session.State, in CheckoutInput) (*PlaceOrderResult, error) {
	if err := auth.RequireAuthenticated(state); err != nil {
		return nil, err
	}
	lines := state.CartLines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	v := validator.New().
		Required("shipping_address", in.ShippingAddress).
		Required("shipping_city", in.ShippingCity).
		Required("shipping_postal_code", in.ShippingPostalCode).
		Required("shipping_country", in.ShippingCountry)
	if v.Fails() {
		return nil, validationError(v)
	}

	err := s.payments.Authorize(ctx, payment.Request{Method: in.PaymentMethod, CardNumber: in.CardNumber})
	if errors.Is(err, payment.ErrDeclined) {
		return nil, ErrPaymentDeclined
	}
	if err != nil {
		return nil, fmt.Errorf("authorize payment: %w", err)
	}

	// live prices and stock, never the browsing cache
	priced, total, err := priceCart(ctx, s.store.Products(), lines, false)
	if err != nil {
		return nil, err
	}
	for _, line := range priced {
		if !line.Product.HasStock(line.Quantity) {
			return nil, ErrItemsOutOfStock
		}
	}

	order := &domain.Order{
		UserID:             state.UserID(),
		TotalAmount:        total,
		Status:             domain.OrderStatusPending,
		ShippingAddress:    in.ShippingAddress,
		ShippingCity:       in.ShippingCity,
		ShippingPostalCode: in.ShippingPostalCode,
		ShippingCountry:    in.ShippingCountry,
	}
	items := make([]domain.OrderItem, 0, len(priced))
	for _, line := range priced {
		items = append(items, domain.OrderItem{
			ProductID:       line.Product.ID,
			ProductName:     line.Product.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.Product.Price,
		})
	}

	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		id, err := tx.Orders().Create(ctx, order)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
		}
		order.ID = id

		if err := tx.Orders().AddItems(ctx, id, items); err != nil {
			return fmt.Errorf("add order items: %w", err)
		}

		for _, item := range items {
			err := tx.Products().DecreaseStock(ctx, item.ProductID, item.Quantity)
			if errors.Is(err, repository.ErrInsufficientStock) {
				return ErrItemsOutOfStock
			}
			if err != nil {
				return fmt.Errorf("decrease stock for product %d: %w", item.ProductID, err)
			}
		}

		payload, err := json.Marshal(domain.OrderPlacedEvent{
			OrderID:     id,
			UserID:      order.UserID,
			Items:       items,
			TotalAmount: total,
			PlacedAt:    time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal order event: %w", err)
		}
		return tx.Outbox().Add(ctx, strconv.FormatInt(id, 10), domain.EventTypeOrderPlaced, payload)
	})
	if err != nil {
		slog.WarnContext(ctx, "checkout failed", slog.Int64("user_id", order.UserID), slog.Any("error", err))
		return nil, err
	}

	for _, item := range items {
		if err := s.cache.Delete(ctx, item.ProductID); err != nil {
			slog.WarnContext(ctx, "cache invalidate error", slog.Int64("product_id", item.ProductID), slog.Any("error", err))
		}
	}

	if ident, ok := state.Identity(); ok {
		s.notifier.SendOrderConfirmation(ctx, ident.Email, order.ID, total)
	}

	state.ClearCart()
	state.Flash("success", fmt.Sprintf("Order placed successfully! Order ID: %d", order.ID))

	slog.InfoContext(ctx, "order placed",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", order.UserID),
		slog.String("total", total.StringFixed(2)))

	return &PlaceOrderResult{OrderID: order.ID, Total: total}, nil
}

// priceCart reads every line's product. With skipMissing, vanished products
// are left out; otherwise they fail with ErrProductNotFound.
func priceCart(
	ctx context.Context,
	products repository.ProductRepoInterface,
	lines []session.CartLine,
	skipMissing bool) ([]PricedLine, decimal.Decimal, error) {

	priced := make([]PricedLine, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		p, err := products.FindByID(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) && skipMissing {
			continue
		}
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("price product %d: %w", line.ProductID, err)
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		priced = append(priced, PricedLine{Product: p, Quantity: line.Quantity, Subtotal: subtotal})
		total = total.Add(subtotal)
	}
	return priced, total, nil
}
