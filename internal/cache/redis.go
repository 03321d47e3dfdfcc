package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

const maxJitter = 5 * time.Minute

// setIfFresh writes the view unless the fence holds a newer version.
var setIfFresh = redis.NewScript(`
local fence = redis.call('GET', KEYS[2])
if fence and tonumber(fence) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// raiseFence deletes the view and moves the fence forward, never back.
var raiseFence = redis.NewScript(`
redis.call('DEL', KEYS[1])
local fence = redis.call('GET', KEYS[2])
if not fence or tonumber(fence) < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, transactionID string) (*domain.StatusView, error) {
	data, err := r.client.Get(ctx, cacheKey(transactionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var view domain.StatusView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("unmarshal status view failed: %w", err)
	}

	return &view, nil
}

func (r RedisCache) Set(ctx context.Context, transactionID string, view *domain.StatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal status view failed: %w", err)
	}

	// jitter spreads expiry so entries written together do not expire together
	jitter := time.Duration(rand.Int63n(int64(maxJitter/time.Minute))) * time.Minute
	ttl := r.baseTTL + jitter

	written, err := setIfFresh.Run(ctx, r.client,
		[]string{cacheKey(transactionID), fenceKey(transactionID)},
		data, view.UpdatedAt.UnixMilli(), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if written == 0 {
		return ErrStaleView
	}
	return nil
}

func (r RedisCache) Invalidate(ctx context.Context, transactionID string, version time.Time) error {
	fenceTTL := r.baseTTL + maxJitter
	err := raiseFence.Run(ctx, r.client,
		[]string{cacheKey(transactionID), fenceKey(transactionID)},
		version.UnixMilli(), fenceTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, transactionID string) error {
	if err := r.client.Del(ctx, cacheKey(transactionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(transactionID string) string {
	return fmt.Sprintf("order-status:%s", transactionID)
}

func fenceKey(transactionID string) string {
	return fmt.Sprintf("order-status-fence:%s", transactionID)
}
