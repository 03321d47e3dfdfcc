package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type eventItem struct {
	ProductID    string              `json:"product_id"`
	Availability domain.Availability `json:"availability"`
	Quantity     int                 `json:"quantity"`
	LineTotal    decimal.Decimal     `json:"line_total"`
}

type orderPlacedPayload struct {
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PreOrder      bool                 `json:"pre_order"`
	Items         []eventItem          `json:"items"`
	Total         decimal.Decimal      `json:"total"`
	Paid          decimal.Decimal      `json:"paid"`
	Due           decimal.Decimal      `json:"due"`
	PlacedAt      time.Time            `json:"placed_at"`
}

type statusChangedPayload struct {
	OrderID       string             `json:"order_id"`
	TransactionID string             `json:"transaction_id,omitempty"`
	From          domain.OrderStatus `json:"from"`
	To            domain.OrderStatus `json:"to"`
	ChangedBy     string             `json:"changed_by,omitempty"`
	ChangedAt     time.Time          `json:"changed_at"`
}

func orderPlacedEvent(o *domain.Order) (*repository.OutboxEvent, error) {
	items := make([]eventItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = eventItem{
			ProductID:    it.ProductID,
			Availability: it.Availability,
			Quantity:     it.Quantity,
			LineTotal:    it.LineTotal,
		}
	}
	payload, err := json.Marshal(orderPlacedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		TransactionID: o.TransactionID,
		PaymentMethod: o.PaymentMethod,
		PreOrder:      o.PreOrder,
		Items:         items,
		Total:         o.Total,
		Paid:          o.Paid,
		Due:           o.Due,
		PlacedAt:      o.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order placed payload: %w", err)
	}
	return &repository.OutboxEvent{
		AggregateID: o.ID,
		EventType:   EventOrderPlaced,
		Payload:     payload,
		CreatedAt:   o.CreatedAt,
	}, nil
}

func statusChangedEvent(o *domain.Order, to domain.OrderStatus, by string, at time.Time) (*repository.OutboxEvent, error) {
	payload, err := json.Marshal(statusChangedPayload{
		OrderID:       o.ID,
		TransactionID: o.TransactionID,
		From:          o.Status,
		To:            to,
		ChangedBy:     by,
		ChangedAt:     at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status changed payload: %w", err)
	}
	return &repository.OutboxEvent{
		AggregateID: o.ID,
		EventType:   EventOrderStatusChanged,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
