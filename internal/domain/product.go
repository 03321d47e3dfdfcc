package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Availability string

const (
	AvailabilityReady    Availability = "Ready"
	AvailabilityPreOrder Availability = "PreOrder"
	AvailabilityUpcoming Availability = "Upcoming"
)

func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityReady, AvailabilityPreOrder, AvailabilityUpcoming:
		return true
	}
	return false
}

// Product is a catalog entry. Price.Valid == false means the price is
// still to be announced.
type Product struct {
	ID           string
	Name         string              `validate:"required,max=200"`
	Description  string              `validate:"max=5000"`
	Images       []string            `validate:"dive,required"`
	MainCategory string              `validate:"max=100"`
	Category     string              `validate:"max=100"`
	Color        string              `validate:"max=50"`
	Slug         string              `validate:"max=300"`
	Price        decimal.NullDecimal `validate:"-"`
	Discount     decimal.Decimal     `validate:"-"`
	Stock        int                 `validate:"gte=0"`
	Availability Availability        `validate:"required,oneof=Ready PreOrder Upcoming"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UnitPrice is the price net of discount. A TBA price counts as zero.
func (p *Product) UnitPrice() decimal.Decimal {
	if !p.Price.Valid {
		return decimal.Zero
	}
	unit := p.Price.Decimal.Sub(p.Discount)
	if unit.IsNegative() {
		return decimal.Zero
	}
	return unit
}

func (p *Product) IsPriceTBA() bool {
	return !p.Price.Valid
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug builds a url-safe identifier from a product name and color.
func Slug(name, color string) string {
	s := strings.ToLower(strings.TrimSpace(name + " " + color))
	s = slugInvalid.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
