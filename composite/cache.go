package composite

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"ndvi-tools/raster"
)

// Cache memoises composites by year. The inputs of a year never change
// within a run, so the per-year export and the change computation can share
// one composite. Failed builds are not cached.
type Cache struct {
	composer Composer

	mu      sync.Mutex
	entries map[int]*cacheEntry
}

type cacheEntry struct {
	mu     sync.Mutex
	result *raster.Raster
}

var _ Composer = (*Cache)(nil)

func NewCache(composer Composer) *Cache {
	return &Cache{composer: composer, entries: make(map[int]*cacheEntry)}
}

func (c *Cache) Build(ctx context.Context, year int) (*raster.Raster, error) {
	c.mu.Lock()
	entry, ok := c.entries[year]
	if !ok {
		entry = &cacheEntry{}
		c.entries[year] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.result != nil {
		logrus.Debugf("Reusing composite for %d", year)
		return entry.result, nil
	}
	r, err := c.composer.Build(ctx, year)
	if err != nil {
		return nil, err
	}
	entry.result = r
	return r, nil
}
