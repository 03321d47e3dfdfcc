package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMobileWallet   PaymentMethod = "MobileWallet"
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMobileWallet || m == PaymentCashOnDelivery
}

// OrderItem is a snapshot of a product taken when the order was placed.
type OrderItem struct {
	ProductID    string `validate:"required"`
	ProductName  string `validate:"required"`
	Color        string
	Availability Availability `validate:"required,oneof=Ready PreOrder Upcoming"`
	Quantity     int          `validate:"min=1"`
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
}

type Order struct {
	ID            string
	UserID        string
	Items         []OrderItem `validate:"required,min=1,dive"`
	CustomerName  string      `validate:"required"`
	Phone         string      `validate:"required"`
	Address       string      `validate:"required"`
	Subtotal      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Total         decimal.Decimal
	Advance       decimal.Decimal
	Paid          decimal.Decimal
	Due           decimal.Decimal
	PreOrder      bool
	PaymentMethod PaymentMethod `validate:"required,oneof=MobileWallet CashOnDelivery"`
	TransactionID string        `validate:"required_if=PaymentMethod MobileWallet"`
	Status        OrderStatus   `validate:"required,oneof=Pending Processing Dispatched Delivered Cancelled"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
