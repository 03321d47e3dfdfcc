package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore implements Store in memory. Transactions are serialised by the
// store mutex and their writes are staged until the transaction function
// returns nil.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	orders   map[string]*domain.Order
	events   []*OutboxEvent

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
		now:      time.Now,
	}
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:    s,
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// commit
	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) ListProducts(context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, cloneProduct(p))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, product *domain.Product) (string, error) {
	if err := ValidateProduct(product); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := cloneProduct(product)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products[p.ID] = p
	return p.ID, nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, product *domain.Product) error {
	if err := ValidateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return ErrProductNotFound
	}
	p := cloneProduct(product)
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) FindOrderByTransactionID(_ context.Context, transactionID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Order
	for _, o := range s.orders {
		if o.TransactionID != transactionID {
			continue
		}
		if found == nil || o.CreatedAt.After(found.CreatedAt) {
			found = o
		}
	}
	if found == nil {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(found), nil
}

func (s *MemoryStore) ListOrders(_ context.Context, limit int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		result = append(result, cloneOrder(o))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*OutboxEvent
	for _, e := range s.events {
		if e.ProcessedAt != nil {
			continue
		}
		c := *e
		result = append(result, &c)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			now := s.now()
			e.ProcessedAt = &now
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// memoryTx stages writes on copies; the store lock is held for its lifetime.
type memoryTx struct {
	store    *MemoryStore
	products map[string]*domain.Product
	orders   map[string]*domain.Order
	events   []*OutboxEvent
}

func (t *memoryTx) product(id string) (*domain.Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	p, ok := t.store.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	staged := cloneProduct(p)
	t.products[id] = staged
	return staged, nil
}

func (t *memoryTx) order(id string) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o, nil
	}
	o, ok := t.store.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	staged := cloneOrder(o)
	t.orders[id] = staged
	return staged, nil
}

func (t *memoryTx) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, err := t.product(id)
	if err != nil {
		return nil, err
	}
	return cloneProduct(p), nil
}

func (t *memoryTx) DecrementStock(_ context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidQuantity, quantity)
	}
	p, err := t.product(productID)
	if err != nil {
		return err
	}
	if p.Stock < quantity {
		return &StockError{ProductID: productID, Requested: quantity, Remaining: p.Stock}
	}
	p.Stock -= quantity
	p.UpdatedAt = t.store.now()
	return nil
}

func (t *memoryTx) IncrementStock(_ context.Context, productID string, quantity int) error {
	p, err := t.product(productID)
	if err != nil {
		return err
	}
	p.Stock += quantity
	p.UpdatedAt = t.store.now()
	return nil
}

func (t *memoryTx) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, err := t.order(id)
	if err != nil {
		return nil, err
	}
	return cloneOrder(o), nil
}

func (t *memoryTx) InsertOrder(_ context.Context, order *domain.Order) (string, error) {
	if err := ValidateOrder(order); err != nil {
		return "", err
	}
	o := cloneOrder(order)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	t.orders[o.ID] = o
	return o.ID, nil
}

func (t *memoryTx) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus, at time.Time) error {
	o, err := t.order(id)
	if err != nil {
		return err
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

func (t *memoryTx) InsertOutboxEvent(_ context.Context, event *OutboxEvent) error {
	e := *event
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.store.now()
	}
	t.events = append(t.events, &e)
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Images = append([]string(nil), p.Images...)
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}
