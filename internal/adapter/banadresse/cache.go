package banadresse

import (
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with in-memory LRU caches.
type CachedGeocoder struct {
	inner    domain.Geocoder
	searches *lruCache[[]domain.AddressCandidate]
	communes *lruCache[domain.Commune]
	metrics  *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:    inner,
		searches: newLRUCache[[]domain.AddressCandidate](maxEntries),
		communes: newLRUCache[domain.Commune](maxEntries),
		metrics:  metrics,
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) []domain.AddressCandidate {
	key := strings.ToLower(strings.TrimSpace(query))
	if result, ok := c.searches.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("search", "hit").Inc()
		return cloneCandidates(result)
	}
	c.metrics.GeocodeCache.WithLabelValues("search", "miss").Inc()

	result := c.inner.Search(ctx, query)
	// Only cache non-empty results so transient failures can be retried.
	if len(result) > 0 {
		c.searches.put(key, cloneCandidates(result))
	}
	return result
}

func (c *CachedGeocoder) Reverse(ctx context.Context, coord domain.Coordinate) (domain.Commune, error) {
	key := coord.String()
	if result, ok := c.communes.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	result, err := c.inner.Reverse(ctx, coord)
	if err != nil {
		return result, err
	}
	if result.Name != "" {
		c.communes.put(key, result)
	}
	return result, nil
}

func cloneCandidates(in []domain.AddressCandidate) []domain.AddressCandidate {
	return append([]domain.AddressCandidate(nil), in...)
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
