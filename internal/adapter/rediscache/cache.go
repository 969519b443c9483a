// Package rediscache provides a Redis-backed read-through cache in front of a
// domain.ParcelSource.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// store is the subset of *redis.Client used by the cache.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// ParcelCache caches parcel lookups by coordinate. Redis failures are logged
// and never surface to callers; the inner source is consulted instead.
type ParcelCache struct {
	inner   domain.ParcelSource
	rdb     store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewParcelCache wraps inner with a Redis cache whose entries expire after ttl.
func NewParcelCache(inner domain.ParcelSource, rdb store, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *ParcelCache {
	return &ParcelCache{inner: inner, rdb: rdb, ttl: ttl, metrics: metrics, logger: logger}
}

// Open connects to Redis and verifies the connection with a PING.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *ParcelCache) ParcelsAt(ctx context.Context, coord domain.Coordinate) ([]domain.ParcelFeature, error) {
	key := cacheKey(coord)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var parcels []domain.ParcelFeature
		if jsonErr := json.Unmarshal(raw, &parcels); jsonErr == nil {
			c.metrics.ParcelCache.WithLabelValues("hit").Inc()
			return parcels, nil
		}
		c.logger.Warn("discarding corrupt parcel cache entry", "key", key)
		c.metrics.ParcelCache.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		c.metrics.ParcelCache.WithLabelValues("miss").Inc()
	default:
		c.logger.Warn("parcel cache read failed", "key", key, "error", err)
		c.metrics.ParcelCache.WithLabelValues("error").Inc()
	}

	parcels, err := c.inner.ParcelsAt(ctx, coord)
	if err != nil || len(parcels) == 0 {
		return parcels, err
	}

	payload, err := json.Marshal(parcels)
	if err != nil {
		return parcels, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("parcel cache write failed", "key", key, "error", err)
	}
	return parcels, nil
}

func cacheKey(coord domain.Coordinate) string {
	return fmt.Sprintf("parcel:%.6f,%.6f", coord.Lat, coord.Lon)
}
