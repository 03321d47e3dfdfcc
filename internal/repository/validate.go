package repository

import (
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(productMoneyValidation, domain.Product{})
	v.RegisterStructValidation(orderMoneyValidation, domain.Order{})
	return v
}

// ValidateProduct checks a product document before it is written.
func ValidateProduct(p *domain.Product) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateOrder checks an order document before it is written.
func ValidateOrder(o *domain.Order) error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

func productMoneyValidation(sl validator.StructLevel) {
	p := sl.Current().Interface().(domain.Product)

	if p.Discount.IsNegative() {
		sl.ReportError(p.Discount, "Discount", "Discount", "gte", "0")
	}
	if !p.Price.Valid {
		return
	}
	if p.Price.Decimal.IsNegative() {
		sl.ReportError(p.Price, "Price", "Price", "gte", "0")
	}
	if p.Discount.GreaterThan(p.Price.Decimal) {
		sl.ReportError(p.Discount, "Discount", "Discount", "ltefield", "Price")
	}
}

// monetaryTolerance absorbs rounding when comparing computed totals.
var monetaryTolerance = decimal.RequireFromString("0.01")

func orderMoneyValidation(sl validator.StructLevel) {
	o := sl.Current().Interface().(domain.Order)

	for name, v := range map[string]decimal.Decimal{
		"Subtotal":    o.Subtotal,
		"DeliveryFee": o.DeliveryFee,
		"Paid":        o.Paid,
		"Due":         o.Due,
		"Advance":     o.Advance,
	} {
		if v.IsNegative() {
			sl.ReportError(v, name, name, "gte", "0")
		}
	}
	if o.Subtotal.Add(o.DeliveryFee).Sub(o.Total).Abs().GreaterThan(monetaryTolerance) {
		sl.ReportError(o.Total, "Total", "Total", "sum", "Subtotal+DeliveryFee")
	}
	if o.Paid.Add(o.Due).Sub(o.Total).Abs().GreaterThan(monetaryTolerance) {
		sl.ReportError(o.Paid, "Paid", "Paid", "sum", "Total-Due")
	}
}
