package pricing

import (
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestDeliveryFee(t *testing.T) {
	tiers := DefaultDeliveryTiers()

	assert.True(t, tiers.Savar.Equal(tiers.DeliveryFee("123 Savar Road")))
	assert.True(t, tiers.Dhaka.Equal(tiers.DeliveryFee("Gulshan, Dhaka")))
	assert.True(t, tiers.Default.Equal(tiers.DeliveryFee("Chittagong")))

	// case-insensitive
	assert.True(t, tiers.Savar.Equal(tiers.DeliveryFee("SAVAR cantonment")))
	assert.True(t, tiers.Dhaka.Equal(tiers.DeliveryFee("mirpur dHaKa-1216")))

	// savar wins when both appear
	assert.True(t, tiers.Savar.Equal(tiers.DeliveryFee("Savar, Dhaka")))
}

func TestDeliveryFee_TierOrdering(t *testing.T) {
	tiers := DefaultDeliveryTiers()
	assert.True(t, tiers.Savar.LessThan(tiers.Dhaka))
	assert.True(t, tiers.Dhaka.LessThan(tiers.Default))
	assert.True(t, dec(110).Equal(tiers.Dhaka))
}

func TestRequiredAdvance(t *testing.T) {
	cases := map[int64]int64{
		437: 110, // 109.25 -> 110
		440: 110,
		460: 115,
		450: 115, // 112.5 -> 22.5 steps -> rounds up
		0:   0,
		10:  5, // 2.5 -> 0.5 step -> rounds away from zero
		8:   0, // 2.0 -> 0.4 step
	}
	for subtotal, want := range cases {
		got := RequiredAdvance(dec(subtotal))
		assert.True(t, dec(want).Equal(got), "subtotal %d: want %d got %s", subtotal, want, got)
	}
}

func TestPaymentSplit(t *testing.T) {
	subtotal := dec(180)
	total := dec(290)

	wallet := PaymentSplit(domain.PaymentMobileWallet, false, subtotal, total)
	assert.True(t, total.Equal(wallet.Paid))
	assert.True(t, wallet.Due.IsZero())

	cod := PaymentSplit(domain.PaymentCashOnDelivery, false, subtotal, total)
	assert.True(t, cod.Paid.IsZero())
	assert.True(t, total.Equal(cod.Due))

	pre := PaymentSplit(domain.PaymentCashOnDelivery, true, dec(437), dec(547))
	assert.True(t, dec(110).Equal(pre.Paid))
	assert.True(t, dec(437).Equal(pre.Due))
	assert.True(t, pre.Advance.Equal(pre.Paid))

	for _, s := range []Split{wallet, cod, pre} {
		assert.True(t, s.Paid.Add(s.Due).GreaterThan(decimal.Zero))
	}
}

func TestPaymentSplit_AdvanceCappedAtTotal(t *testing.T) {
	s := PaymentSplit(domain.PaymentMobileWallet, true, dec(10), dec(3))
	assert.True(t, dec(3).Equal(s.Paid))
	assert.True(t, s.Due.IsZero())
}

func TestLineTotal(t *testing.T) {
	assert.True(t, dec(180).Equal(LineTotal(dec(90), 2)))
}
