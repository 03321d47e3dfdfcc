package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/repository"
)

const defaultOrderListLimit = 100

func (s *OrderService) requireAdmin(ctx context.Context) (identity.Actor, error) {
	actor := s.identity.CurrentActor(ctx)
	if !actor.IsAdmin() {
		return actor, newError(KindForbidden, "admin access required")
	}
	return actor, nil
}

func (s *OrderService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, wrapError(KindTransactionFailed, err, "failed to list products")
	}
	return products, nil
}

func (s *OrderService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.getProduct(ctx, id)
}

func (s *OrderService) getProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, newError(KindProductNotFound, "product %s does not exist", id)
	}
	if err != nil {
		return nil, wrapError(KindTransactionFailed, err, "failed to get product")
	}
	return p, nil
}

// CreateProduct stores a new product. The slug is always derived from the
// name and color.
func (s *OrderService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if product == nil {
		return nil, newError(KindValidation, "product is required")
	}

	p := *product
	p.ID = ""
	p.Name = strings.TrimSpace(p.Name)
	p.Slug = domain.Slug(p.Name, p.Color)

	id, err := s.store.CreateProduct(ctx, &p)
	if err != nil {
		return nil, productWriteError(err)
	}

	logging.FromCtx(ctx).Info("product created", "product_id", id, "availability", p.Availability, "stock", p.Stock)
	return s.getProduct(ctx, id)
}

func (s *OrderService) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if product == nil || product.ID == "" {
		return nil, newError(KindValidation, "product id is required")
	}

	p := *product
	p.Name = strings.TrimSpace(p.Name)
	p.Slug = domain.Slug(p.Name, p.Color)

	if err := s.store.UpdateProduct(ctx, &p); err != nil {
		return nil, productWriteError(err)
	}

	logging.FromCtx(ctx).Info("product updated", "product_id", p.ID, "stock", p.Stock)
	return s.getProduct(ctx, p.ID)
}

// DeleteProduct removes a product. Orders keep their snapshot of it.
func (s *OrderService) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return productWriteError(err)
	}
	logging.FromCtx(ctx).Info("product deleted", "product_id", id)
	return nil
}

func productWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return newError(KindProductNotFound, "product does not exist")
	case errors.Is(err, repository.ErrInvalidDocument):
		return wrapError(KindValidation, err, "product is invalid")
	default:
		return wrapError(KindTransactionFailed, err, "failed to save product")
	}
}

// ListOrders returns orders newest first. A non-positive limit uses the default.
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	orders, err := s.store.ListOrders(ctx, limit)
	if err != nil {
		return nil, wrapError(KindTransactionFailed, err, "failed to list orders")
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along its workflow. Cancelling returns
// the stock of Ready lines whose product still exists.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, newError(KindValidation, "unknown order status %q", status)
	}

	var updated *domain.Order
	var from domain.OrderStatus
	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return newError(KindOrderNotFound, "order %s does not exist", orderID)
		}
		if err != nil {
			return err
		}
		if !domain.CanTransitionTo(order.Status, status) {
			return newError(KindInvalidStatusTransition, "cannot move order from %s to %s", order.Status, status)
		}

		if status == domain.OrderStatusCancelled {
			for _, item := range order.Items {
				if item.Availability != domain.AvailabilityReady {
					continue
				}
				err := tx.IncrementStock(ctx, item.ProductID, item.Quantity)
				if errors.Is(err, repository.ErrProductNotFound) {
					continue
				}
				if err != nil {
					return err
				}
			}
		}

		at := s.now().UTC()
		if err := tx.UpdateOrderStatus(ctx, order.ID, status, at); err != nil {
			return err
		}
		event, err := statusChangedEvent(order, status, actor.UID, at)
		if err != nil {
			return err
		}
		if err := tx.InsertOutboxEvent(ctx, event); err != nil {
			return err
		}

		from = order.Status
		order.Status = status
		order.UpdatedAt = at
		updated = order
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	logging.FromCtx(ctx).Info("order status changed", "order_id", updated.ID, "from", from, "to", status)
	s.invalidateStatus(updated.TransactionID, updated.UpdatedAt)
	return updated, nil
}
