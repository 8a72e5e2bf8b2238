package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/session"
	s "github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// newRequest builds a request carrying state, with optional chi url params
func newRequest(method, target, body string, state *session.State, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx := req.Context()
	if state != nil {
		ctx = session.NewContext(ctx, state)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func loggedIn(role domain.Role) *session.State {
	state := session.New()
	state.SetUser(&domain.User{ID: 1, Username: "jane", Email: "jane@example.com", Role: role})
	return state
}

// MockCart implements Cart for testing
type MockCart struct {
	err      error
	lastIn   s.CartItemInput
	removed  []int64
	view     *s.CartView
	count    int
	cleared  bool
}

func (m *MockCart) Add(_ context.Context, state *session.State, in s.CartItemInput) error {
	m.lastIn = in
	if m.err != nil {
		return m.err
	}
	state.Flash("success", "Product added to cart")
	return nil
}

func (m *MockCart) Update(_ context.Context, _ *session.State, in s.CartItemInput) error {
	m.lastIn = in
	return m.err
}

func (m *MockCart) Remove(state *session.State, productID int64) {
	m.removed = append(m.removed, productID)
	state.Flash("success", "Item removed from cart")
}

func (m *MockCart) Clear(state *session.State) {
	m.cleared = true
	state.Flash("success", "Cart cleared")
}

func (m *MockCart) View(context.Context, *session.State) (*s.CartView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *MockCart) Count(*session.State) int {
	return m.count
}

// MockCheckout implements Checkout for testing
type MockCheckout struct {
	err     error
	result  *s.PlaceOrderResult
	preview *s.CheckoutPreview
	lastIn  s.CheckoutInput
}

func (m *MockCheckout) Preview(context.Context, *session.State) (*s.CheckoutPreview, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.preview, nil
}

func (m *MockCheckout) PlaceOrder(_ context.Context, state *session.State, in s.CheckoutInput) (*s.PlaceOrderResult, error) {
	m.lastIn = in
	if m.err != nil {
		return nil, m.err
	}
	state.Flash("success", "Order placed successfully! Order ID: 9")
	return m.result, nil
}

// MockAccounts implements Accounts for testing
type MockAccounts struct {
	err  error
	user *domain.User
}

func (m *MockAccounts) Register(_ context.Context, state *session.State, _ s.RegisterInput) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	state.Flash("success", "Registration successful! Please login.")
	return m.user, nil
}

func (m *MockAccounts) Login(_ context.Context, state *session.State, _ s.LoginInput) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	state.SetUser(m.user)
	return m.user, nil
}

func (m *MockAccounts) Logout(_ context.Context, state *session.State) {
	state.Destroy()
	state.Flash("info", "You have been logged out")
}

func (m *MockAccounts) Profile(context.Context, *session.State) (*s.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &s.Profile{User: m.user}, nil
}

func (m *MockAccounts) UpdateProfile(context.Context, *session.State, s.ProfileInput) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *MockAccounts) ChangePassword(context.Context, *session.State, s.PasswordInput) error {
	return m.err
}

func (m *MockAccounts) DeleteAccount(context.Context, *session.State, string) error {
	return m.err
}

// MockCatalog implements ProductCatalog and ProductAdmin for testing
type MockCatalog struct {
	err       error
	page      *s.ProductPage
	detail    *s.ProductDetail
	products  []*domain.Product
	lastQuery s.ListQuery
	lastTerm  string
	lastStock string
}

func (m *MockCatalog) List(_ context.Context, q s.ListQuery) (*s.ProductPage, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *MockCatalog) Detail(context.Context, int64) (*s.ProductDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detail, nil
}

func (m *MockCatalog) Search(_ context.Context, term string) ([]*domain.Product, error) {
	m.lastTerm = term
	return m.products, m.err
}

func (m *MockCatalog) Dashboard(context.Context) (*s.Dashboard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &s.Dashboard{Products: m.products}, nil
}

func (m *MockCatalog) Create(context.Context, s.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: 1, Name: "Lamp", Price: decimal.NewFromInt(10)}, nil
}

func (m *MockCatalog) Update(_ context.Context, id int64, _ s.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: id}, nil
}

func (m *MockCatalog) Delete(context.Context, int64) error {
	return m.err
}

func (m *MockCatalog) UpdateStock(_ context.Context, _ int64, stock string) error {
	m.lastStock = stock
	return m.err
}

// MockOrders implements Orders for testing
type MockOrders struct {
	err    error
	order  *domain.Order
	userID int64
}

func (m *MockOrders) GetForUser(_ context.Context, userID, _ int64) (*domain.Order, error) {
	m.userID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *MockOrders) ListForUser(_ context.Context, userID int64) ([]*domain.Order, error) {
	m.userID = userID
	if m.err != nil {
		return nil, m.err
	}
	return []*domain.Order{m.order}, nil
}
