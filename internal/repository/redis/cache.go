package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache stores JSON encoded read models. Concurrent misses on one key share
// a single load.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func getJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var out T

	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}

	if err := json.Unmarshal(b, &out); err != nil {
		// A payload from an older shape is treated as a miss.
		return out, false, nil
	}

	return out, true, nil
}

// GetOrSetJSON returns the cached value of key or loads, stores and returns
// it. A failed write to Redis does not fail the call. Waiters stop waiting
// when ctx is done.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	const op = "redis.GetOrSetJSON"
	var zero T

	if v, ok, err := getJSON[T](ctx, c, key); err != nil || ok {
		if err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		return v, nil
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(v); err == nil {
			_ = c.rdb.Set(ctx, key, b, ttl).Err()
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("%s: key %s holds %T", op, key, res.Val)
		}
		return v, nil
	}
}

// InvalidateRevenue drops the cached day and month reports that include
// an order created at t.
func (c *Cache) InvalidateRevenue(ctx context.Context, t time.Time) error {
	return c.del(
		ctx,
		KeyDayRevenue(t),
		KeyMonthRevenue(t.Year(), t.Month()),
	)
}
