// Package cache implements the best-effort read cache in front of the
// current-weather and hourly-forecast endpoints. It is never a source of
// truth: any backend failure degrades to computing the value.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Backend is a minimal TTL key-value store. Implementations must treat Set
// TTLs as upper bounds and delete as immediate.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReadCache wraps a backend with the two cache classes and their TTLs.
type ReadCache struct {
	backend    Backend
	currentTTL time.Duration
	hourlyTTL  time.Duration
}

// New creates a ReadCache with independent TTLs per cache class.
func New(backend Backend, currentTTL, hourlyTTL time.Duration) *ReadCache {
	return &ReadCache{backend: backend, currentTTL: currentTTL, hourlyTTL: hourlyTTL}
}

// CurrentKey is the current-weather cache key for a location.
func CurrentKey(locationID uuid.UUID) string {
	return "weather:current:" + locationID.String()
}

// HourlyKey is the hourly-forecast cache key for a location and hour count.
func HourlyKey(locationID uuid.UUID, hours int) string {
	return fmt.Sprintf("weather:hourly:%s:%d", locationID, hours)
}

// InvalidateCurrent removes the current-weather entry for a location,
// independent of TTL. Hourly entries are never explicitly invalidated; they
// only expire.
func (c *ReadCache) InvalidateCurrent(ctx context.Context, locationID uuid.UUID) {
	key := CurrentKey(locationID)
	if err := c.backend.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

// GetOrComputeCurrent serves a current-weather value through the cache.
func GetOrComputeCurrent[T any](ctx context.Context, c *ReadCache, locationID uuid.UUID, compute func(ctx context.Context) (T, error)) (T, error) {
	return getOrCompute(ctx, c.backend, CurrentKey(locationID), c.currentTTL, compute)
}

// GetOrComputeHourly serves an hourly-forecast value through the cache.
func GetOrComputeHourly[T any](ctx context.Context, c *ReadCache, locationID uuid.UUID, hours int, compute func(ctx context.Context) (T, error)) (T, error) {
	return getOrCompute(ctx, c.backend, HourlyKey(locationID, hours), c.hourlyTTL, compute)
}

// getOrCompute returns the cached JSON value for key, or computes, stores
// and returns it. Compute errors are returned uncached; backend errors are
// logged and treated as misses.
func getOrCompute[T any](ctx context.Context, backend Backend, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, hit, err := backend.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed; computing")
	} else if hit {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
		// A corrupt entry is dropped and recomputed.
		_ = backend.Delete(ctx, key)
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	raw, err = json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err := backend.Set(ctx, key, raw, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return value, nil
}
