package geocode

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// CachedGeocoder wraps a Geocoder with a bounded LRU. Only matches are cached
// so transient failures and misses are retried on the next sweep.
type CachedGeocoder struct {
	inner sentinel.Geocoder
	cache *lru.Cache[string, sentinel.Coordinates]
}

// NewCachedGeocoder creates a cache holding up to size entries.
func NewCachedGeocoder(inner sentinel.Geocoder, size int) (*CachedGeocoder, error) {
	cache, err := lru.New[string, sentinel.Coordinates](size)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache}, nil
}

// Geocode serves from cache when possible.
func (c *CachedGeocoder) Geocode(ctx context.Context, query string) (sentinel.Coordinates, bool, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if coords, ok := c.cache.Get(key); ok {
		return coords, true, nil
	}
	coords, ok, err := c.inner.Geocode(ctx, query)
	if err != nil || !ok {
		return coords, ok, err
	}
	c.cache.Add(key, coords)
	return coords, true, nil
}

// Len returns the number of cached entries.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
