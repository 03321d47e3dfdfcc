package service

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

// IdempotencyStore remembers the outcome of a request by client-chosen key.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key string, value []byte) error
	Recall(ctx context.Context, scope, key string) ([]byte, bool, error)
}

// OrderService places orders, answers status lookups and runs the admin
// back office on top of a document store.
type OrderService struct {
	store    repository.Store
	identity identity.Provider
	cache    cache.StatusCache
	idem     IdempotencyStore
	tiers    pricing.DeliveryTiers
	now      func() time.Time
	sfg      singleflight.Group // Prevents cache stampede
}

type Option func(*OrderService)

func WithStatusCache(c cache.StatusCache) Option {
	return func(s *OrderService) { s.cache = c }
}

func WithIdempotency(store IdempotencyStore) Option {
	return func(s *OrderService) { s.idem = store }
}

func WithDeliveryTiers(tiers pricing.DeliveryTiers) Option {
	return func(s *OrderService) { s.tiers = tiers }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(store repository.Store, provider identity.Provider, opts ...Option) *OrderService {
	s := &OrderService{
		store:    store,
		identity: provider,
		cache:    cache.NopCache{},
		tiers:    pricing.DefaultDeliveryTiers(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// invalidateStatus drops the cached view for transactionID and rejects any
// later write of a view older than version.
func (s *OrderService) invalidateStatus(transactionID string, version time.Time) {
	if transactionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, transactionID, version); err != nil {
		logging.Base().Warn("cache invalidate failed", "transaction_id", transactionID, "err", err)
	}
}
