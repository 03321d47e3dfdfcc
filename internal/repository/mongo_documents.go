package repository

import (
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type productDocument struct {
	ID           primitive.ObjectID    `bson:"_id,omitempty"`
	Name         string                `bson:"name"`
	Description  string                `bson:"description"`
	Images       []string              `bson:"images"`
	MainCategory string                `bson:"main_category"`
	Category     string                `bson:"category"`
	Color        string                `bson:"color"`
	Slug         string                `bson:"slug"`
	Price        *primitive.Decimal128 `bson:"price"` // nil while the price is TBA
	Discount     primitive.Decimal128  `bson:"discount"`
	Stock        int                   `bson:"stock"`
	Availability string                `bson:"availability"`
	CreatedAt    time.Time             `bson:"created_at"`
	UpdatedAt    time.Time             `bson:"updated_at"`
}

type orderItemDocument struct {
	ProductID    string               `bson:"product_id"`
	ProductName  string               `bson:"product_name"`
	Color        string               `bson:"color"`
	Availability string               `bson:"availability"`
	Quantity     int                  `bson:"quantity"`
	UnitPrice    primitive.Decimal128 `bson:"unit_price"`
	LineTotal    primitive.Decimal128 `bson:"line_total"`
}

type orderDocument struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	UserID        string               `bson:"user_id,omitempty"`
	Items         []orderItemDocument  `bson:"items"`
	CustomerName  string               `bson:"customer_name"`
	Phone         string               `bson:"phone"`
	Address       string               `bson:"address"`
	Subtotal      primitive.Decimal128 `bson:"subtotal"`
	DeliveryFee   primitive.Decimal128 `bson:"delivery_fee"`
	Total         primitive.Decimal128 `bson:"total"`
	Advance       primitive.Decimal128 `bson:"advance"`
	Paid          primitive.Decimal128 `bson:"paid"`
	Due           primitive.Decimal128 `bson:"due"`
	PreOrder      bool                 `bson:"pre_order"`
	PaymentMethod string               `bson:"payment_method"`
	TransactionID string               `bson:"transaction_id,omitempty"`
	Status        string               `bson:"status"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

type outboxDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	AggregateID string             `bson:"aggregate_id"`
	EventType   string             `bson:"event_type"`
	Payload     []byte             `bson:"payload"`
	CreatedAt   time.Time          `bson:"created_at"`
	ProcessedAt *time.Time         `bson:"processed_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v, err)
	}
	return d, nil
}

// decimals converts several values at once, stopping at the first error.
func decimals(dst []*primitive.Decimal128, src []decimal.Decimal) error {
	for i := range src {
		v, err := toDecimal128(src[i])
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

func fromDecimals(dst []*decimal.Decimal, src []primitive.Decimal128) error {
	for i := range src {
		v, err := fromDecimal128(src[i])
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

func toProductDocument(p *domain.Product) (*productDocument, error) {
	doc := &productDocument{
		Name:         p.Name,
		Description:  p.Description,
		Images:       p.Images,
		MainCategory: p.MainCategory,
		Category:     p.Category,
		Color:        p.Color,
		Slug:         p.Slug,
		Stock:        p.Stock,
		Availability: string(p.Availability),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.ID != "" {
		oid, err := primitive.ObjectIDFromHex(p.ID)
		if err != nil {
			return nil, ErrProductNotFound
		}
		doc.ID = oid
	}
	if p.Price.Valid {
		price, err := toDecimal128(p.Price.Decimal)
		if err != nil {
			return nil, err
		}
		doc.Price = &price
	}
	discount, err := toDecimal128(p.Discount)
	if err != nil {
		return nil, err
	}
	doc.Discount = discount
	return doc, nil
}

func (d *productDocument) toDomain() (*domain.Product, error) {
	p := &domain.Product{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Description:  d.Description,
		Images:       d.Images,
		MainCategory: d.MainCategory,
		Category:     d.Category,
		Color:        d.Color,
		Slug:         d.Slug,
		Stock:        d.Stock,
		Availability: domain.Availability(d.Availability),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Price != nil {
		price, err := fromDecimal128(*d.Price)
		if err != nil {
			return nil, err
		}
		p.Price = decimal.NewNullDecimal(price)
	}
	discount, err := fromDecimal128(d.Discount)
	if err != nil {
		return nil, err
	}
	p.Discount = discount
	return p, nil
}

func toOrderDocument(o *domain.Order) (*orderDocument, error) {
	doc := &orderDocument{
		UserID:        o.UserID,
		Items:         make([]orderItemDocument, len(o.Items)),
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Address:       o.Address,
		PreOrder:      o.PreOrder,
		PaymentMethod: string(o.PaymentMethod),
		TransactionID: o.TransactionID,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.ID != "" {
		oid, err := primitive.ObjectIDFromHex(o.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid order id %q: %w", o.ID, err)
		}
		doc.ID = oid
	}
	err := decimals(
		[]*primitive.Decimal128{&doc.Subtotal, &doc.DeliveryFee, &doc.Total, &doc.Advance, &doc.Paid, &doc.Due},
		[]decimal.Decimal{o.Subtotal, o.DeliveryFee, o.Total, o.Advance, o.Paid, o.Due},
	)
	if err != nil {
		return nil, err
	}
	for i, item := range o.Items {
		it := orderItemDocument{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Color:        item.Color,
			Availability: string(item.Availability),
			Quantity:     item.Quantity,
		}
		if err := decimals(
			[]*primitive.Decimal128{&it.UnitPrice, &it.LineTotal},
			[]decimal.Decimal{item.UnitPrice, item.LineTotal},
		); err != nil {
			return nil, err
		}
		doc.Items[i] = it
	}
	return doc, nil
}

func (d *orderDocument) toDomain() (*domain.Order, error) {
	o := &domain.Order{
		ID:            d.ID.Hex(),
		UserID:        d.UserID,
		Items:         make([]domain.OrderItem, len(d.Items)),
		CustomerName:  d.CustomerName,
		Phone:         d.Phone,
		Address:       d.Address,
		PreOrder:      d.PreOrder,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		TransactionID: d.TransactionID,
		Status:        domain.OrderStatus(d.Status),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	err := fromDecimals(
		[]*decimal.Decimal{&o.Subtotal, &o.DeliveryFee, &o.Total, &o.Advance, &o.Paid, &o.Due},
		[]primitive.Decimal128{d.Subtotal, d.DeliveryFee, d.Total, d.Advance, d.Paid, d.Due},
	)
	if err != nil {
		return nil, err
	}
	for i, item := range d.Items {
		it := domain.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Color:        item.Color,
			Availability: domain.Availability(item.Availability),
			Quantity:     item.Quantity,
		}
		if err := fromDecimals(
			[]*decimal.Decimal{&it.UnitPrice, &it.LineTotal},
			[]primitive.Decimal128{item.UnitPrice, item.LineTotal},
		); err != nil {
			return nil, err
		}
		o.Items[i] = it
	}
	return o, nil
}

func (d *outboxDocument) toDomain() *OutboxEvent {
	return &OutboxEvent{
		ID:          d.ID.Hex(),
		AggregateID: d.AggregateID,
		EventType:   d.EventType,
		Payload:     d.Payload,
		CreatedAt:   d.CreatedAt,
		ProcessedAt: d.ProcessedAt,
	}
}
