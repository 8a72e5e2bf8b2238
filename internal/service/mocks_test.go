package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repository.Repository {
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
	return repo
}

func addProduct(t *testing.T, store repository.Repositories, name, category, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      category,
	}
	id, err := store.Products().Create(context.Background(), p)
	require.NoError(t, err)
	p.ID = id
	return p
}

func addUser(t *testing.T, store repository.Repositories, username, email, password string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: email, Role: domain.RoleCustomer}
	id, err := store.Users().Create(context.Background(), u, password)
	require.NoError(t, err)
	u.ID = id
	return u
}

// MockNotifier records what would have been mailed
type MockNotifier struct {
	mu            sync.Mutex
	Confirmations []int64
	ConfirmedTo   []string
	Welcomed      []string
}

func (m *MockNotifier) SendOrderConfirmation(_ context.Context, email string, orderID int64, _ decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmations = append(m.Confirmations, orderID)
	m.ConfirmedTo = append(m.ConfirmedTo, email)
}

func (m *MockNotifier) SendWelcomeEmail(_ context.Context, email, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Welcomed = append(m.Welcomed, email)
}

// MockPaymentProvider fails every authorization with Err
type MockPaymentProvider struct {
	Err error
}

func (m *MockPaymentProvider) Authorize(context.Context, payment.Request) error {
	return m.Err
}

// MockCache is an in-memory cache.ProductCache
type MockCache struct {
	mu      sync.Mutex
	Items   map[int64]*domain.Product
	Gets    int
	Deleted []int64
}

func NewMockCache() *MockCache {
	return &MockCache{Items: make(map[int64]*domain.Product)}
}

func (m *MockCache) Get(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	p, ok := m.Items[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *p
	return &cp, nil
}

func (m *MockCache) Set(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.Items[p.ID] = &cp
	return nil
}

func (m *MockCache) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Items, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}

// FaultyStore wraps a real store and injects failures inside transactions
type FaultyStore struct {
	*repository.Repository
	CreateOrderErr error
	AddItemsErr    error
	OutboxErr      error
}

func (f *FaultyStore) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	return f.Repository.WithTx(ctx, func(tx repository.Repositories) error {
		return fn(faultyRepos{Repositories: tx, store: f})
	})
}

type faultyRepos struct {
	repository.Repositories
	store *FaultyStore
}

func (r faultyRepos) Orders() repository.OrderRepoInterface {
	return faultyOrders{OrderRepoInterface: r.Repositories.Orders(), store: r.store}
}

func (r faultyRepos) Outbox() repository.OutboxRepoInterface {
	return faultyOutbox{OutboxRepoInterface: r.Repositories.Outbox(), store: r.store}
}

type faultyOrders struct {
	repository.OrderRepoInterface
	store *FaultyStore
}

func (o faultyOrders) Create(ctx context.Context, order *domain.Order) (int64, error) {
	if o.store.CreateOrderErr != nil {
		return 0, o.store.CreateOrderErr
	}
	return o.OrderRepoInterface.Create(ctx, order)
}

func (o faultyOrders) AddItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	if o.store.AddItemsErr != nil {
		return o.store.AddItemsErr
	}
	return o.OrderRepoInterface.AddItems(ctx, orderID, items)
}

type faultyOutbox struct {
	repository.OutboxRepoInterface
	store *FaultyStore
}

func (o faultyOutbox) Add(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	if o.store.OutboxErr != nil {
		return o.store.OutboxErr
	}
	return o.OutboxRepoInterface.Add(ctx, aggregateID, eventType, payload)
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
