package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/validator"
	"github.com/shopspring/decimal"
)

const (
	MinLineQuantity = 1
	MaxLineQuantity = 100
)

type CartItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
}

type CartView struct {
	Lines []PricedLine    `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// CartService mutates the cart kept in the session. Stock checks read the
// product store directly.
type CartService struct {
	repos repository.Repositories
}

func NewCartService(repos repository.Repositories) *CartService {
	return &CartService{repos: repos}
}

// Add puts quantity units of a product in the cart, merging with an existing line.
// An empty quantity means one unit. The merged quantity must be in stock.
func (s *CartService) Add(ctx context.Context, state *session.State, in CartItemInput) error {
	if strings.TrimSpace(in.Quantity) == "" {
		in.Quantity = "1"
	}
	v := validator.New().
		Required("product_id", in.ProductID).
		Integer("product_id", in.ProductID).
		Integer("quantity", in.Quantity).
		Between("quantity", in.Quantity, MinLineQuantity, MaxLineQuantity)
	if v.Fails() {
		return validationError(v)
	}

	productID := wholeNumber(in.ProductID)
	quantity := int(wholeNumber(in.Quantity))

	p, err := s.repos.Products().FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.HasStock(state.CartQuantity(productID) + quantity) {
		return ErrInsufficientStock
	}

	state.AddToCart(productID, quantity)
	state.Flash("success", "Product added to cart")
	return nil
}

// Update sets a line's quantity. Zero or less removes the line.
func (s *CartService) Update(ctx context.Context, state *session.State, in CartItemInput) error {
	v := validator.New().
		Required("product_id", in.ProductID).
		Integer("product_id", in.ProductID).
		Required("quantity", in.Quantity).
		Integer("quantity", in.Quantity)
	if v.Fails() {
		return validationError(v)
	}

	productID := wholeNumber(in.ProductID)
	quantity := int(wholeNumber(in.Quantity))

	if quantity <= 0 {
		state.RemoveFromCart(productID)
		return nil
	}

	ok, err := s.repos.Products().HasStock(ctx, productID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientStock
	}

	state.SetQuantity(productID, quantity)
	return nil
}

func (s *CartService) Remove(state *session.State, productID int64) {
	state.RemoveFromCart(productID)
	state.Flash("success", "Item removed from cart")
}

func (s *CartService) Clear(state *session.State) {
	state.ClearCart()
	state.Flash("success", "Cart cleared")
}

// View prices the cart. Lines whose product no longer exists are skipped.
func (s *CartService) View(ctx context.Context, state *session.State) (*CartView, error) {
	priced, total, err := priceCart(ctx, s.repos.Products(), state.CartLines(), true)
	if err != nil {
		return nil, fmt.Errorf("view cart: %w", err)
	}
	return &CartView{Lines: priced, Total: total, Count: state.CartCount()}, nil
}

func (s *CartService) Count(state *session.State) int {
	return state.CartCount()
}
