package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// StatusCache caches order status lookups by transaction id.
//
// Invalidate drops the entry and fences out any view older than version, so
// a lookup that read the order before the change cannot write it back.
type StatusCache interface {
	Get(ctx context.Context, transactionID string) (*domain.StatusView, error)
	Set(ctx context.Context, transactionID string, view *domain.StatusView) error
	Delete(ctx context.Context, transactionID string) error
	Invalidate(ctx context.Context, transactionID string, version time.Time) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleView is returned by Set when a newer invalidation has been seen.
	ErrStaleView = errors.New("status view older than last invalidation")
)

// NopCache never stores anything; every Get is a miss.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.StatusView, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, *domain.StatusView) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }

func (NopCache) Invalidate(context.Context, string, time.Time) error { return nil }
