package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// countingStore wraps the in-memory store and counts every call made to it.
type countingStore struct {
	*repository.MemoryStore
	calls       atomic.Int64
	lookups     atomic.Int64
	txErr       error // returned by RunInTransaction instead of running fn
	failOnCount int64 // when >0, RunInTransaction fails on that call
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: repository.NewMemoryStore()}
}

func (c *countingStore) RunInTransaction(ctx context.Context, fn repository.TxFunc) error {
	n := c.calls.Add(1)
	if c.txErr != nil && (c.failOnCount == 0 || c.failOnCount == n) {
		return c.txErr
	}
	return c.MemoryStore.RunInTransaction(ctx, fn)
}

func (c *countingStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	c.calls.Add(1)
	return c.MemoryStore.GetProduct(ctx, id)
}

func (c *countingStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	c.calls.Add(1)
	return c.MemoryStore.ListProducts(ctx)
}

func (c *countingStore) CreateProduct(ctx context.Context, p *domain.Product) (string, error) {
	c.calls.Add(1)
	return c.MemoryStore.CreateProduct(ctx, p)
}

func (c *countingStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	c.calls.Add(1)
	return c.MemoryStore.UpdateProduct(ctx, p)
}

func (c *countingStore) DeleteProduct(ctx context.Context, id string) error {
	c.calls.Add(1)
	return c.MemoryStore.DeleteProduct(ctx, id)
}

func (c *countingStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	c.calls.Add(1)
	return c.MemoryStore.GetOrder(ctx, id)
}

func (c *countingStore) FindOrderByTransactionID(ctx context.Context, txn string) (*domain.Order, error) {
	c.calls.Add(1)
	c.lookups.Add(1)
	return c.MemoryStore.FindOrderByTransactionID(ctx, txn)
}

func (c *countingStore) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	c.calls.Add(1)
	return c.MemoryStore.ListOrders(ctx, limit)
}

var errStoreDown = errors.New("store unavailable")

var (
	guest = identity.StaticProvider(identity.Guest)
	admin = identity.StaticProvider(identity.Actor{Role: identity.RoleAdmin, UID: "admin@example.com"})
)

func mustCreateProduct(t *testing.T, store repository.Store, p *domain.Product) string {
	t.Helper()
	id, err := store.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	return id
}

func readyProduct(name string, price, discount int64, stock int) *domain.Product {
	return &domain.Product{
		Name:         name,
		Color:        "Blue",
		Price:        decimal.NewNullDecimal(decimal.NewFromInt(price)),
		Discount:     decimal.NewFromInt(discount),
		Stock:        stock,
		Availability: domain.AvailabilityReady,
	}
}

func codRequest(items ...LineRequest) *PlaceOrderRequest {
	return &PlaceOrderRequest{
		Items:          items,
		CustomerName:   "Ayesha",
		Phone:          "01711111111",
		Address:        "House 5, Road 2, Dhanmondi, Dhaka",
		PaymentMethod:  domain.PaymentCashOnDelivery,
		PolicyAccepted: true,
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
