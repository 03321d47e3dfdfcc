package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	outboxCollection   = "outbox"
)

type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	orders   *mongo.Collection
	outbox   *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   db.Client(),
		products: db.Collection(productsCollection),
		orders:   db.Collection(ordersCollection),
		outbox:   db.Collection(outboxCollection),
	}
}

// RunInTransaction runs fn inside a snapshot transaction. The driver
// retries fn on transient write conflicts until ctx expires.
func (m *MongoStore) RunInTransaction(ctx context.Context, fn TxFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: m})
	}, txnOpts)
	return err
}

func (m *MongoStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.findProduct(ctx, id)
}

func (m *MongoStore) findProduct(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrProductNotFound
	}

	var doc productDocument
	err = m.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.toDomain()
}

func (m *MongoStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.products.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]*domain.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (m *MongoStore) CreateProduct(ctx context.Context, product *domain.Product) (string, error) {
	if err := ValidateProduct(product); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	p := *product
	p.ID = ""
	p.CreatedAt = now
	p.UpdatedAt = now

	doc, err := toProductDocument(&p)
	if err != nil {
		return "", err
	}
	doc.ID = primitive.NewObjectID()

	if _, err := m.products.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to create product: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (m *MongoStore) UpdateProduct(ctx context.Context, product *domain.Product) error {
	if err := ValidateProduct(product); err != nil {
		return err
	}

	doc, err := toProductDocument(product)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"name":          doc.Name,
		"description":   doc.Description,
		"images":        doc.Images,
		"main_category": doc.MainCategory,
		"category":      doc.Category,
		"color":         doc.Color,
		"slug":          doc.Slug,
		"price":         doc.Price,
		"discount":      doc.Discount,
		"stock":         doc.Stock,
		"availability":  doc.Availability,
		"updated_at":    time.Now().UTC(),
	}}

	result, err := m.products.UpdateOne(ctx, bson.M{"_id": doc.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrProductNotFound
	}

	result, err := m.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *MongoStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return m.findOrder(ctx, id)
}

func (m *MongoStore) findOrder(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	var doc orderDocument
	err = m.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return doc.toDomain()
}

func (m *MongoStore) FindOrderByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc orderDocument
	err := m.orders.FindOne(ctx, bson.M{"transaction_id": transactionID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by transaction id: %w", err)
	}
	return doc.toDomain()
}

func (m *MongoStore) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (m *MongoStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.outbox.Find(ctx, bson.M{"processed_at": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []outboxDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}

	events := make([]*OutboxEvent, 0, len(docs))
	for i := range docs {
		events = append(events, docs[i].toDomain())
	}
	return events, nil
}

func (m *MongoStore) MarkEventAsProcessed(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid outbox event id %q: %w", id, err)
	}

	update := bson.M{"$set": bson.M{"processed_at": time.Now().UTC()}}
	if _, err := m.outbox.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("failed to mark outbox event: %w", err)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoTx struct {
	store *MongoStore
}

func (t *mongoTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return t.store.findProduct(ctx, id)
}

// DecrementStock only matches when enough stock is left, so the check and
// the write are a single operation inside the transaction.
func (t *mongoTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidQuantity, quantity)
	}
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return ErrProductNotFound
	}

	filter := bson.M{"_id": oid, "stock": bson.M{"$gte": quantity}}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := t.store.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	p, err := t.store.findProduct(ctx, productID)
	if err != nil {
		return err
	}
	return &StockError{ProductID: productID, Requested: quantity, Remaining: p.Stock}
}

func (t *mongoTx) IncrementStock(ctx context.Context, productID string, quantity int) error {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return ErrProductNotFound
	}

	update := bson.M{
		"$inc": bson.M{"stock": quantity},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := t.store.products.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (t *mongoTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return t.store.findOrder(ctx, id)
}

func (t *mongoTx) InsertOrder(ctx context.Context, order *domain.Order) (string, error) {
	if err := ValidateOrder(order); err != nil {
		return "", err
	}

	doc, err := toOrderDocument(order)
	if err != nil {
		return "", err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := t.store.orders.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (t *mongoTx) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrOrderNotFound
	}

	update := bson.M{"$set": bson.M{"status": string(status), "updated_at": at}}
	result, err := t.store.orders.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *mongoTx) InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error {
	doc := outboxDocument{
		ID:          primitive.NewObjectID(),
		AggregateID: event.AggregateID,
		EventType:   event.EventType,
		Payload:     event.Payload,
		CreatedAt:   event.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := t.store.outbox.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}
