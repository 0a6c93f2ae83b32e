package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// GetJSON fetches key and unmarshals it into dest. Returns redis.Nil on a
// miss and a sentinel error when caching is disabled.
func GetJSON(ctx context.Context, key string, dest interface{}) error {
	if client == nil {
		return errors.New("cache disabled")
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON marshals value and stores it under key with the given TTL. Failures
// are swallowed; the cache is best-effort.
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	client.Set(ctx, key, raw, ttl)
}

// Aside implements the cache-aside pattern: return the cached value under key
// if present, otherwise run load (which should fill dest) and populate the
// cache. Cache errors other than a miss fall through to the loader.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() error) error {
	if err := GetJSON(ctx, key, dest); err == nil {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	SetJSON(ctx, key, dest, ttl)
	return nil
}
