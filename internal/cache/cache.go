package cache

import (
	"context"
	"time"
)

// Cache stores JSON encoded values with a TTL. A miss is (false, nil).
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Fetch serves key from c, falling back to load on a miss and storing what
// load returned for ttl. The bool reports a cache hit. Cache failures go to
// onErr and degrade to a direct load; only load errors are returned. A nil c
// always loads.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration,
	load func(context.Context) (T, error), onErr func(error)) (T, bool, error) {
	if c != nil {
		var cached T
		hit, err := c.GetJSON(ctx, key, &cached)
		if err != nil && onErr != nil {
			onErr(err)
		}
		if hit {
			return cached, true, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}

	if c != nil {
		if err := c.SetJSON(ctx, key, v, ttl); err != nil && onErr != nil {
			onErr(err)
		}
	}
	return v, false, nil
}
