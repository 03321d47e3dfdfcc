package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

const idempotencyScopeGuest = "guest"

type LineRequest struct {
	ProductID string
	Quantity  int
}

type PlaceOrderRequest struct {
	Items          []LineRequest
	CustomerName   string
	Phone          string
	Address        string
	PaymentMethod  domain.PaymentMethod
	TransactionID  string
	PolicyAccepted bool
	// IdempotencyKey is optional. A repeated key returns the first result.
	IdempotencyKey string
}

type PlaceOrderResult struct {
	OrderID     string          `json:"order_id"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Due         decimal.Decimal `json:"due"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
}

// PlaceOrder validates the request, then decrements stock for Ready lines
// and inserts the order in one store transaction. Either both happen or
// neither does.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	lines, err := validatePlaceOrder(req)
	if err != nil {
		return nil, err
	}

	actor := s.identity.CurrentActor(ctx)
	log := logging.FromCtx(ctx)

	if req.IdempotencyKey != "" && s.idem != nil {
		scope := actor.UID
		if scope == "" {
			scope = idempotencyScopeGuest
		}
		if res, ok := s.recallResult(ctx, scope, req.IdempotencyKey); ok {
			log.Info("duplicate order request replayed", "idempotency_key", req.IdempotencyKey, "order_id", res.OrderID)
			return res, nil
		}
		locked, err := s.idem.TryLock(ctx, scope, req.IdempotencyKey)
		if err != nil {
			log.Warn("idempotency lock failed, placing without it", "err", err)
		} else if !locked {
			return nil, newError(KindDuplicateRequest, "an order with idempotency key %q is already being placed", req.IdempotencyKey)
		} else {
			res, err := s.placeOrder(ctx, req, lines, actor.UID)
			s.settleIdempotency(ctx, scope, req.IdempotencyKey, res, err)
			return res, err
		}
	}

	return s.placeOrder(ctx, req, lines, actor.UID)
}

func (s *OrderService) placeOrder(ctx context.Context, req *PlaceOrderRequest, lines []LineRequest, userID string) (*PlaceOrderResult, error) {
	deliveryFee := s.tiers.DeliveryFee(req.Address)

	var placed *domain.Order
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := s.now().UTC()
		order := &domain.Order{
			UserID:        userID,
			Items:         make([]domain.OrderItem, 0, len(lines)),
			CustomerName:  strings.TrimSpace(req.CustomerName),
			Phone:         strings.TrimSpace(req.Phone),
			Address:       strings.TrimSpace(req.Address),
			DeliveryFee:   deliveryFee,
			PaymentMethod: req.PaymentMethod,
			TransactionID: strings.TrimSpace(req.TransactionID),
			Status:        domain.OrderStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		subtotal := decimal.Zero
		for _, line := range lines {
			item, err := reserveLine(ctx, tx, line)
			if err != nil {
				return err
			}
			if item.Availability == domain.AvailabilityPreOrder {
				order.PreOrder = true
			}
			subtotal = subtotal.Add(item.LineTotal)
			order.Items = append(order.Items, *item)
		}

		order.Subtotal = subtotal
		order.Total = subtotal.Add(deliveryFee)
		split := pricing.PaymentSplit(order.PaymentMethod, order.PreOrder, order.Subtotal, order.Total)
		order.Advance, order.Paid, order.Due = split.Advance, split.Paid, split.Due

		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id

		event, err := orderPlacedEvent(order)
		if err != nil {
			return err
		}
		if err := tx.InsertOutboxEvent(ctx, event); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	logging.FromCtx(ctx).Info("order placed",
		"order_id", placed.ID,
		"items", len(placed.Items),
		"total", placed.Total.String(),
		"pre_order", placed.PreOrder,
		"payment_method", placed.PaymentMethod,
	)
	s.invalidateStatus(placed.TransactionID, placed.UpdatedAt)

	return &PlaceOrderResult{
		OrderID:     placed.ID,
		Total:       placed.Total,
		Paid:        placed.Paid,
		Due:         placed.Due,
		DeliveryFee: placed.DeliveryFee,
	}, nil
}

// reserveLine re-reads a product inside the transaction, decrements stock for
// Ready products and returns the line snapshot.
func reserveLine(ctx context.Context, tx repository.Tx, line LineRequest) (*domain.OrderItem, error) {
	p, err := tx.GetProduct(ctx, line.ProductID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, newError(KindProductNotFound, "product %s does not exist", line.ProductID)
	}
	if err != nil {
		return nil, err
	}

	switch p.Availability {
	case domain.AvailabilityUpcoming:
		return nil, newError(KindProductUnavailable, "%s is not available for ordering yet", p.Name)
	case domain.AvailabilityReady:
		if line.Quantity > p.Stock {
			return nil, stockError(p.ID, p.Stock)
		}
		if err := tx.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
			var se *repository.StockError
			if errors.As(err, &se) {
				return nil, stockError(p.ID, se.Remaining)
			}
			return nil, err
		}
	}

	unit := p.UnitPrice()
	return &domain.OrderItem{
		ProductID:    p.ID,
		ProductName:  p.Name,
		Color:        p.Color,
		Availability: p.Availability,
		Quantity:     line.Quantity,
		UnitPrice:    unit,
		LineTotal:    pricing.LineTotal(unit, line.Quantity),
	}, nil
}

// translateTxError keeps typed failures raised inside the transaction and
// reports everything else as TransactionFailed.
func translateTxError(err error) error {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe
	}
	return wrapError(KindTransactionFailed, err, "the order could not be saved, please try again")
}

// validatePlaceOrder runs every check that needs no store access and returns
// the lines with duplicate products merged, in first-seen order.
func validatePlaceOrder(req *PlaceOrderRequest) ([]LineRequest, error) {
	if req == nil {
		return nil, newError(KindValidation, "request is required")
	}
	if !req.PolicyAccepted {
		return nil, newError(KindPolicyNotAccepted, "you must accept the store policy to place an order")
	}
	if len(req.Items) == 0 {
		return nil, newError(KindValidation, "cart is empty")
	}

	var missing []string
	if strings.TrimSpace(req.CustomerName) == "" {
		missing = append(missing, "customer name")
	}
	if strings.TrimSpace(req.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(req.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return nil, newError(KindValidation, "missing %s", strings.Join(missing, ", "))
	}
	if !req.PaymentMethod.IsValid() {
		return nil, newError(KindValidation, "unknown payment method %q", req.PaymentMethod)
	}

	lines := make([]LineRequest, 0, len(req.Items))
	index := make(map[string]int, len(req.Items))
	for i, item := range req.Items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" {
			return nil, newError(KindValidation, "item %d has no product id", i+1)
		}
		if item.Quantity < 1 {
			return nil, newError(KindValidation, "item %d must have a quantity of at least 1", i+1)
		}
		if at, ok := index[id]; ok {
			if item.Quantity > math.MaxInt-lines[at].Quantity {
				return nil, newError(KindValidation, "total quantity for product %s is too large", id)
			}
			lines[at].Quantity += item.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, LineRequest{ProductID: id, Quantity: item.Quantity})
	}

	if req.PaymentMethod == domain.PaymentMobileWallet && strings.TrimSpace(req.TransactionID) == "" {
		return nil, newError(KindPaymentInfoMissing, "a transaction id is required for mobile wallet payments")
	}

	return lines, nil
}

func (s *OrderService) recallResult(ctx context.Context, scope, key string) (*PlaceOrderResult, bool) {
	raw, found, err := s.idem.Recall(ctx, scope, key)
	if err != nil {
		logging.FromCtx(ctx).Warn("idempotency recall failed", "err", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var res PlaceOrderResult
	if err := json.Unmarshal(raw, &res); err != nil {
		logging.FromCtx(ctx).Warn("idempotency record unreadable", "err", err)
		return nil, false
	}
	return &res, true
}

// settleIdempotency stores a successful result under the key, or releases the
// lock so the client can retry a failed request.
func (s *OrderService) settleIdempotency(ctx context.Context, scope, key string, res *PlaceOrderResult, placeErr error) {
	log := logging.FromCtx(ctx)
	if placeErr != nil {
		if err := s.idem.Release(context.WithoutCancel(ctx), scope, key); err != nil {
			log.Warn("idempotency release failed", "err", err)
		}
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		log.Warn("idempotency marshal failed", "err", err)
		return
	}
	if err := s.idem.Remember(context.WithoutCancel(ctx), scope, key, raw); err != nil {
		log.Warn("idempotency remember failed", "err", err)
	}
}
