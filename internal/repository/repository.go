package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// StockError is returned when a conditional stock decrement finds fewer
// units than requested. Remaining is the stock read in the same transaction.
type StockError struct {
	ProductID string
	Requested int
	Remaining int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, remaining %d", e.ProductID, e.Requested, e.Remaining)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// OutboxEvent is written in the same transaction as the state change it
// describes and published later by the outbox poller.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Tx is the set of operations available inside an atomic unit. Every call
// must use the context handed to the transaction function.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int) error
	IncrementStock(ctx context.Context, productID string, quantity int) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	InsertOrder(ctx context.Context, order *domain.Order) (string, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error
	InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error
}

// TxFunc may be invoked more than once when the store retries a transaction
// after a transient conflict, so it must not keep state between attempts.
type TxFunc func(ctx context.Context, tx Tx) error

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) (string, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	FindOrderByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error)
	ListOrders(ctx context.Context, limit int) ([]*domain.Order, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

// Store is the document store the services depend on.
// Consumers define this interface, not the MongoDB implementation
type Store interface {
	ProductRepository
	OrderRepository
	OutboxRepository
	RunInTransaction(ctx context.Context, fn TxFunc) error
	Close(ctx context.Context) error
}
