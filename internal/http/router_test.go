package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/mailer"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	s "github.com/fjod/storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storefront struct {
	server *httptest.Server
	repo   *repository.Repository
}

func newStorefront(t *testing.T) *storefront {
	t.Helper()
	creds := &repository.Credentials{
		Driver:            repository.DriverSQLite,
		Path:              ":memory:",
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))
	t.Cleanup(func() { _ = repo.Close() })

	notifier := mailer.New(mailer.NewLogClient(slog.Default()), "noreply@storefront.test", slog.Default())
	catalog := s.NewCatalogService(repo, nil)

	handlers := Handlers{
		Products: NewProductHandler(catalog, testTimeout),
		Cart:     NewCartHandler(s.NewCartService(repo), testTimeout),
		Checkout: NewCheckoutHandler(s.NewCheckoutService(repo, payment.NewTestCardProvider(), notifier, nil), testTimeout),
		Orders:   NewOrdersHandler(s.NewOrderService(repo), testTimeout),
		Users:    NewUserHandler(s.NewUserService(repo, notifier), testTimeout),
		Admin:    NewAdminHandler(catalog, testTimeout),
	}
	router := NewRouter(handlers, RouterConfig{
		Sessions:       newMemoryStore(t),
		Cookie:         CookieConfig{TTL: time.Hour},
		RequestTimeout: testTimeout,
		DB:             repo,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &storefront{server: server, repo: repo}
}

// visitor is a browser with its own cookie jar
type visitor struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (sf *storefront) visitor(t *testing.T) *visitor {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &visitor{t: t, base: sf.server.URL, client: &http.Client{Jar: jar}}
}

func (v *visitor) do(method, path string, body any) (int, []byte) {
	v.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(v.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, v.base+path, reader)
	require.NoError(v.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := v.client.Do(req)
	require.NoError(v.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(v.t, err)
	return resp.StatusCode, raw
}

func (sf *storefront) addProduct(t *testing.T, name string, price string, stock int) *domain.Product {
	p := &domain.Product{Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock, Category: "Lighting"}
	id, err := sf.repo.Products().Create(context.Background(), p)
	require.NoError(t, err)
	p.ID = id
	return p
}

func (sf *storefront) addUser(t *testing.T, username, email, password string, role domain.Role) {
	_, err := sf.repo.Users().Create(context.Background(),
		&domain.User{Username: username, Email: email, Role: role}, password)
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	sf := newStorefront(t)
	status, body := sf.visitor(t).do("GET", "/health", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestStorefront_CheckoutJourney(t *testing.T) {
	sf := newStorefront(t)
	lamp := sf.addProduct(t, "Desk Lamp", "19.99", 5)
	productPath := strconv.FormatInt(lamp.ID, 10)
	v := sf.visitor(t)

	// guests can browse and count but not touch the cart
	status, _ := v.do("GET", "/api/v1/products/"+productPath, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := v.do("GET", "/api/v1/cart/count", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":0}`, string(body))

	status, body = v.do("POST", "/api/v1/cart/items", map[string]any{"product_id": lamp.ID, "quantity": 1})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), `"redirect":"/login"`)

	// register does not log in
	status, body = v.do("POST", "/api/v1/register", map[string]string{
		"username":         "jane",
		"email":            "jane@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _ = v.do("GET", "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = v.do("POST", "/api/v1/login", map[string]string{"email": "jane@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), "Welcome back, jane!")

	status, _ = v.do("POST", "/api/v1/login", map[string]string{"email": "jane@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = v.do("POST", "/api/v1/cart/items", map[string]any{"product_id": lamp.ID, "quantity": 2})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = v.do("POST", "/api/v1/cart/items", map[string]any{"product_id": lamp.ID, "quantity": 4})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "Insufficient stock")

	status, body = v.do("GET", "/api/v1/cart/count", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":2}`, string(body))

	shipping := map[string]string{
		"shipping_address":     "1 Main St",
		"shipping_city":        "Springfield",
		"shipping_postal_code": "12345",
		"shipping_country":     "US",
		"payment_method":       payment.MethodTestCard,
		"card_number":          "4000 0000 0000 0002",
	}
	status, body = v.do("POST", "/api/v1/checkout", shipping)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "Please use test card: 4242 4242 4242 4242")

	shipping["card_number"] = "4242 4242 4242 4242"
	status, body = v.do("POST", "/api/v1/checkout", shipping)
	require.Equal(t, http.StatusCreated, status, string(body))

	var placed struct {
		Message  string              `json:"message"`
		Redirect string              `json:"redirect"`
		Data     s.PlaceOrderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &placed))
	assert.True(t, placed.Data.Total.Equal(decimal.RequireFromString("39.98")))
	assert.Equal(t, "/orders/"+strconv.FormatInt(placed.Data.OrderID, 10), placed.Redirect)

	status, body = v.do("GET", "/api/v1"+placed.Redirect, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var order domain.Order
	require.NoError(t, json.Unmarshal(body, &order))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	stored, err := sf.repo.Products().FindByID(context.Background(), lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.StockQuantity)

	status, body = v.do("GET", "/api/v1/cart/count", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":0}`, string(body))

	// flashes survive until read, then vanish
	status, body = v.do("GET", "/api/v1/flash", nil)
	assert.Equal(t, http.StatusOK, status)
	var flashes map[string]string
	require.NoError(t, json.Unmarshal(body, &flashes))
	assert.Contains(t, flashes["success"], "Order placed successfully! Order ID: ")

	_, body = v.do("GET", "/api/v1/flash", nil)
	assert.JSONEq(t, `{}`, string(body))

	// customers never reach the admin screens
	status, _ = v.do("GET", "/api/v1/admin/products", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = v.do("POST", "/api/v1/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = v.do("GET", "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStorefront_OrdersArePrivate(t *testing.T) {
	sf := newStorefront(t)
	lamp := sf.addProduct(t, "Desk Lamp", "10.00", 5)
	sf.addUser(t, "jane", "jane@example.com", "secret123", domain.RoleCustomer)
	sf.addUser(t, "mallory", "mallory@example.com", "secret123", domain.RoleCustomer)

	jane := sf.visitor(t)
	status, _ := jane.do("POST", "/api/v1/login", map[string]string{"email": "jane@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)
	status, _ = jane.do("POST", "/api/v1/cart/items", map[string]any{"product_id": lamp.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, status)
	status, body := jane.do("POST", "/api/v1/checkout", map[string]string{
		"shipping_address": "1 Main St", "shipping_city": "Springfield",
		"shipping_postal_code": "12345", "shipping_country": "US", "payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var placed struct {
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(body, &placed))

	mallory := sf.visitor(t)
	status, _ = mallory.do("POST", "/api/v1/login", map[string]string{"email": "mallory@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)

	status, _ = mallory.do("GET", "/api/v1"+placed.Redirect, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStorefront_AdminManagesProducts(t *testing.T) {
	sf := newStorefront(t)
	sf.addUser(t, "root", "admin@example.com", "secret123", domain.RoleAdmin)

	admin := sf.visitor(t)
	status, _ := admin.do("POST", "/api/v1/login", map[string]string{"email": "admin@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)

	status, body := admin.do("POST", "/api/v1/admin/products", map[string]any{
		"name": "Floor Lamp", "description": "Tall", "price": "49.50", "stock_quantity": 3, "category": "Lighting",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var created struct {
		Data domain.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	id := strconv.FormatInt(created.Data.ID, 10)

	status, body = admin.do("PUT", "/api/v1/admin/products/"+id+"/stock", map[string]any{"stock_quantity": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, status, string(body))

	status, _ = admin.do("PUT", "/api/v1/admin/products/"+id+"/stock", map[string]any{"stock_quantity": 8})
	assert.Equal(t, http.StatusOK, status)

	status, body = admin.do("GET", "/api/v1/admin/products", nil)
	require.Equal(t, http.StatusOK, status)
	var dash s.Dashboard
	require.NoError(t, json.Unmarshal(body, &dash))
	require.Len(t, dash.LowStock, 1)
	assert.Equal(t, 8, dash.LowStock[0].StockQuantity)

	status, _ = admin.do("DELETE", "/api/v1/admin/products/"+id, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = admin.do("GET", "/api/v1/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
