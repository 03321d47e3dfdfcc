package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusView is what a customer sees when looking an order up by the
// transaction id they paid with.
type StatusView struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Status        OrderStatus     `json:"status"`
	Explanation   string          `json:"explanation"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewStatusView(o *Order) *StatusView {
	return &StatusView{
		OrderID:       o.ID,
		TransactionID: o.TransactionID,
		Status:        o.Status,
		Explanation:   o.Status.Explanation(),
		Total:         o.Total,
		Paid:          o.Paid,
		Due:           o.Due,
		UpdatedAt:     o.UpdatedAt,
	}
}
