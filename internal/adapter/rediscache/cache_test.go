package rediscache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

var testCoord = domain.Coordinate{Lat: 48.8566, Lon: 2.3522}

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return redis.NewStringResult("", f.readErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type countingSource struct {
	parcels []domain.ParcelFeature
	err     error
	calls   int
}

func (s *countingSource) ParcelsAt(context.Context, domain.Coordinate) ([]domain.ParcelFeature, error) {
	s.calls++
	return s.parcels, s.err
}

func newTestCache(inner domain.ParcelSource, rdb store) *ParcelCache {
	return NewParcelCache(inner, rdb, time.Hour, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParcelCache_MissThenHit(t *testing.T) {
	src := &countingSource{parcels: []domain.ParcelFeature{{Section: "AB", Numero: "0012"}}}
	rdb := newFakeStore()
	c := newTestCache(src, rdb)

	first, err := c.ParcelsAt(context.Background(), testCoord)
	require.NoError(t, err)
	second, err := c.ParcelsAt(context.Background(), testCoord)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Hour, rdb.ttls["parcel:48.856600,2.352200"])
}

func TestParcelCache_EmptyNotCached(t *testing.T) {
	src := &countingSource{}
	rdb := newFakeStore()
	c := newTestCache(src, rdb)

	_, _ = c.ParcelsAt(context.Background(), testCoord)
	_, _ = c.ParcelsAt(context.Background(), testCoord)

	assert.Equal(t, 2, src.calls)
	assert.Empty(t, rdb.data)
}

func TestParcelCache_InnerErrorPropagates(t *testing.T) {
	src := &countingSource{err: errors.New("upstream down")}
	rdb := newFakeStore()
	c := newTestCache(src, rdb)

	_, err := c.ParcelsAt(context.Background(), testCoord)
	require.Error(t, err)
	assert.Empty(t, rdb.data)
}

func TestParcelCache_RedisDownFallsThrough(t *testing.T) {
	src := &countingSource{parcels: []domain.ParcelFeature{{Section: "AC"}}}
	rdb := newFakeStore()
	rdb.readErr = errors.New("connection refused")
	c := newTestCache(src, rdb)

	parcels, err := c.ParcelsAt(context.Background(), testCoord)
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	assert.Equal(t, "AC", parcels[0].Section)
	assert.Equal(t, 1, src.calls)
}

func TestParcelCache_CorruptEntryRefetched(t *testing.T) {
	src := &countingSource{parcels: []domain.ParcelFeature{{Section: "AD"}}}
	rdb := newFakeStore()
	rdb.data[cacheKey(testCoord)] = "{not json"
	c := newTestCache(src, rdb)

	parcels, err := c.ParcelsAt(context.Background(), testCoord)
	require.NoError(t, err)
	assert.Equal(t, "AD", parcels[0].Section)
	assert.Equal(t, 1, src.calls)
}

func TestCacheKey_SixDecimals(t *testing.T) {
	assert.Equal(t, "parcel:-21.115141,55.536384", cacheKey(domain.Coordinate{Lat: -21.1151413, Lon: 55.5363838}))
}
