package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/repository"
)

// LookupStatus finds the latest order paid with transactionID and explains
// its status. Cache failures are logged and never fail the lookup.
func (s *OrderService) LookupStatus(ctx context.Context, transactionID string) (*domain.StatusView, error) {
	txn := strings.TrimSpace(transactionID)
	if txn == "" {
		return nil, newError(KindValidation, "transaction id is required")
	}

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(txn, func() (interface{}, error) {
		log := logging.FromCtx(ctx)

		view, err := s.cache.Get(ctx, txn)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn("cache get failed", "transaction_id", txn, "err", err)
		}

		order, err := s.store.FindOrderByTransactionID(ctx, txn)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, newError(KindOrderNotFound, "no order found for transaction id %s", txn)
		}
		if err != nil {
			return nil, wrapError(KindTransactionFailed, err, "order lookup failed")
		}

		view = domain.NewStatusView(order)

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		err = s.cache.Set(setCtx, txn, view)
		switch {
		case errors.Is(err, cache.ErrStaleView):
			log.Debug("status changed during lookup, not caching", "transaction_id", txn)
		case err != nil:
			log.Warn("cache set failed", "transaction_id", txn, "err", err)
		}

		return view, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.StatusView), nil
}
