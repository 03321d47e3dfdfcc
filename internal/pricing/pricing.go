// Package pricing holds the monetary rules applied at order time: delivery
// fee classification, the pre-order advance and the paid/due split.
package pricing

import (
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	advanceRate = decimal.RequireFromString("0.25")
	advanceStep = decimal.NewFromInt(5)
)

// DeliveryTiers are the three fixed delivery fees.
type DeliveryTiers struct {
	Savar   decimal.Decimal
	Dhaka   decimal.Decimal
	Default decimal.Decimal
}

func DefaultDeliveryTiers() DeliveryTiers {
	return DeliveryTiers{
		Savar:   decimal.NewFromInt(70),
		Dhaka:   decimal.NewFromInt(110),
		Default: decimal.NewFromInt(150),
	}
}

// DeliveryFee classifies a shipping address. "savar" is checked before
// "dhaka" so that "Savar, Dhaka" gets the Savar tier.
func (t DeliveryTiers) DeliveryFee(address string) decimal.Decimal {
	a := strings.ToLower(address)
	switch {
	case strings.Contains(a, "savar"):
		return t.Savar
	case strings.Contains(a, "dhaka"):
		return t.Dhaka
	default:
		return t.Default
	}
}

// RequiredAdvance is 25% of the subtotal rounded to the nearest 5 currency
// units, halves rounded away from zero.
func RequiredAdvance(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(advanceRate).Div(advanceStep).Round(0).Mul(advanceStep)
}

// Split is the outcome of applying the payment policy to an order total.
type Split struct {
	Advance decimal.Decimal
	Paid    decimal.Decimal
	Due     decimal.Decimal
}

// PaymentSplit decides paid and due. A pre-order always collects the advance
// now and the rest later, whatever the payment method.
func PaymentSplit(method domain.PaymentMethod, preOrder bool, subtotal, total decimal.Decimal) Split {
	if preOrder {
		advance := decimal.Min(RequiredAdvance(subtotal), total)
		return Split{Advance: advance, Paid: advance, Due: total.Sub(advance)}
	}
	if method == domain.PaymentMobileWallet {
		return Split{Advance: decimal.Zero, Paid: total, Due: decimal.Zero}
	}
	return Split{Advance: decimal.Zero, Paid: decimal.Zero, Due: total}
}

// LineTotal is quantity * unit price.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
