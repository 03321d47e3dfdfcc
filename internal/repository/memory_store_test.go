package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(stock int) *domain.Product {
	return &domain.Product{
		Name:         "Cotton Saree",
		Color:        "Red",
		Images:       []string{"https://cdn.example.com/saree.jpg"},
		Price:        decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Discount:     decimal.NewFromInt(10),
		Stock:        stock,
		Availability: domain.AvailabilityReady,
	}
}

func newTestOrder(productID string, qty int) *domain.Order {
	unit := decimal.NewFromInt(90)
	subtotal := unit.Mul(decimal.NewFromInt(int64(qty)))
	fee := decimal.NewFromInt(110)
	total := subtotal.Add(fee)
	return &domain.Order{
		Items: []domain.OrderItem{{
			ProductID:    productID,
			ProductName:  "Cotton Saree",
			Availability: domain.AvailabilityReady,
			Quantity:     qty,
			UnitPrice:    unit,
			LineTotal:    subtotal,
		}},
		CustomerName:  "Rahim",
		Phone:         "01700000000",
		Address:       "Gulshan, Dhaka",
		Subtotal:      subtotal,
		DeliveryFee:   fee,
		Total:         total,
		Paid:          decimal.Zero,
		Due:           total,
		PaymentMethod: domain.PaymentCashOnDelivery,
		TransactionID: "TXN-1",
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func TestMemoryStore_CreateAndGetProduct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.CreateProduct(ctx, newTestProduct(3))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestMemoryStore_CreateProduct_Invalid(t *testing.T) {
	store := NewMemoryStore()

	p := newTestProduct(3)
	p.Discount = decimal.NewFromInt(150)
	_, err := store.CreateProduct(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	p = newTestProduct(-1)
	_, err = store.CreateProduct(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	p = newTestProduct(1)
	p.Availability = "Soon"
	_, err = store.CreateProduct(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestMemoryStore_GetProduct_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_Transaction_CommitsTogether(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, err := store.CreateProduct(ctx, newTestProduct(3))
	require.NoError(t, err)

	var orderID string
	err = store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.DecrementStock(ctx, id, 2); err != nil {
			return err
		}
		var err error
		orderID, err = tx.InsertOrder(ctx, newTestOrder(id, 2))
		if err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, &OutboxEvent{AggregateID: orderID, EventType: "OrderPlaced", Payload: []byte(`{}`)})
	})
	require.NoError(t, err)

	p, _ := store.GetProduct(ctx, id)
	assert.Equal(t, 1, p.Stock)

	o, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, 2, o.Items[0].Quantity)

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_Transaction_RollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, _ := store.CreateProduct(ctx, newTestProduct(3))
	other, _ := store.CreateProduct(ctx, newTestProduct(1))

	err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.DecrementStock(ctx, id, 2); err != nil {
			return err
		}
		if _, err := tx.InsertOrder(ctx, newTestOrder(id, 2)); err != nil {
			return err
		}
		return tx.DecrementStock(ctx, other, 5)
	})

	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 1, stockErr.Remaining)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	p, _ := store.GetProduct(ctx, id)
	assert.Equal(t, 3, p.Stock)
	orders, _ := store.ListOrders(ctx, 0)
	assert.Empty(t, orders)
}

func TestMemoryStore_DecrementStock_RejectsNonPositive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, _ := store.CreateProduct(ctx, newTestProduct(3))

	for _, qty := range []int{0, -5} {
		err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
			return tx.DecrementStock(ctx, id, qty)
		})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}

	p, _ := store.GetProduct(ctx, id)
	assert.Equal(t, 3, p.Stock)
}

func TestMemoryStore_Transaction_ReadsOwnWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, _ := store.CreateProduct(ctx, newTestProduct(5))

	err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.DecrementStock(ctx, id, 2))
		p, err := tx.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		// outside the transaction nothing changed yet
		outside := store.products[id]
		assert.Equal(t, 5, outside.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_Transaction_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.RunInTransaction(ctx, func(context.Context, Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryStore_InsertOrder_RejectsBrokenMoney(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	o := newTestOrder("p1", 1)
	o.Paid = decimal.NewFromInt(1)
	err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.InsertOrder(ctx, o)
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	o = newTestOrder("p1", 1)
	o.PaymentMethod = domain.PaymentMobileWallet
	o.TransactionID = ""
	o.Paid, o.Due = o.Total, decimal.Zero
	err = store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.InsertOrder(ctx, o)
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestMemoryStore_ConcurrentDecrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, _ := store.CreateProduct(ctx, newTestProduct(100))

	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	// 10 buyers of 20 units each against 100 in stock: only 5 can win
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
				return tx.DecrementStock(ctx, id, 20)
			})
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 5, successCount)
	p, _ := store.GetProduct(ctx, id)
	assert.Equal(t, 0, p.Stock)
}

func TestMemoryStore_FindOrderByTransactionID_Latest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := newTestOrder("p1", 1)
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := newTestOrder("p1", 2)

	for _, o := range []*domain.Order{first, second} {
		err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.InsertOrder(ctx, o)
			return err
		})
		require.NoError(t, err)
	}

	found, err := store.FindOrderByTransactionID(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, 2, found.Items[0].Quantity)

	_, err = store.FindOrderByTransactionID(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	orders, err := store.ListOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)
}

func TestMemoryStore_UpdateAndDeleteProduct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, _ := store.CreateProduct(ctx, newTestProduct(3))

	p, _ := store.GetProduct(ctx, id)
	p.Stock = 7
	require.NoError(t, store.UpdateProduct(ctx, p))
	p, _ = store.GetProduct(ctx, id)
	assert.Equal(t, 7, p.Stock)

	require.NoError(t, store.DeleteProduct(ctx, id))
	assert.ErrorIs(t, store.DeleteProduct(ctx, id), ErrProductNotFound)
	p.ID = id
	assert.ErrorIs(t, store.UpdateProduct(ctx, p), ErrProductNotFound)
}

func TestMemoryStore_MarkEventAsProcessed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.RunInTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOutboxEvent(ctx, &OutboxEvent{AggregateID: "o1", EventType: "OrderPlaced"}); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, &OutboxEvent{AggregateID: "o2", EventType: "OrderPlaced"})
	})
	require.NoError(t, err)

	events, _ := store.GetUnprocessedEvents(ctx, 10)
	require.Len(t, events, 2)
	require.NoError(t, store.MarkEventAsProcessed(ctx, events[0].ID))

	events, _ = store.GetUnprocessedEvents(ctx, 10)
	require.Len(t, events, 1)
	assert.Equal(t, "o2", events[0].AggregateID)
}
