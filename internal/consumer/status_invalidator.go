package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/logging"
	"github.com/segmentio/kafka-go"
)

const DefaultGroupID = "storefront-status-cache"

// MessageReader is the part of *kafka.Reader the invalidator uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// StatusInvalidator drops cached status views for every order event it
// reads, so instances that missed the in-process invalidation still converge.
type StatusInvalidator struct {
	reader     MessageReader
	cache      cache.StatusCache
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewStatusInvalidator(reader MessageReader, statusCache cache.StatusCache) *StatusInvalidator {
	return &StatusInvalidator{
		reader:     reader,
		cache:      statusCache,
		log:        logging.New("status-invalidator"),
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

// orderEvent covers both OrderPlaced and OrderStatusChanged payloads.
type orderEvent struct {
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	PlacedAt      time.Time `json:"placed_at"`
	ChangedAt     time.Time `json:"changed_at"`
}

func (e orderEvent) version() time.Time {
	if !e.ChangedAt.IsZero() {
		return e.ChangedAt
	}
	return e.PlacedAt
}

// Run consumes until ctx is cancelled. Read failures back off exponentially
// up to maxBackoff and reset after the next successful read.
func (s *StatusInvalidator) Run(ctx context.Context) {
	backoff := s.minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.handleNext(ctx); err == nil {
			backoff = s.minBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.maxBackoff)
	}
}

func (s *StatusInvalidator) handleNext(ctx context.Context) error {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.log.Error("error reading message", "err", err)
		}
		return err
	}

	s.invalidate(ctx, m)

	if err := s.reader.CommitMessages(ctx, m); err != nil {
		s.log.Error("failed to commit message", "offset", m.Offset, "err", err)
	}
	return nil
}

func (s *StatusInvalidator) invalidate(ctx context.Context, m kafka.Message) {
	var event orderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		s.log.Warn("skipping unreadable event", "offset", m.Offset, "err", err)
		return
	}
	if event.TransactionID == "" {
		return
	}

	var err error
	if v := event.version(); v.IsZero() {
		err = s.cache.Delete(ctx, event.TransactionID)
	} else {
		err = s.cache.Invalidate(ctx, event.TransactionID, v)
	}
	if err != nil {
		s.log.Warn("failed to invalidate status", "order_id", event.OrderID, "event_type", headerValue(m, "event_type"), "err", err)
		return
	}
	s.log.Debug("status invalidated", "order_id", event.OrderID, "event_type", headerValue(m, "event_type"))
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (s *StatusInvalidator) Close() error {
	return s.reader.Close()
}
