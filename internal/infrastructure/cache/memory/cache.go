// Package memory is an in-process LRU classification cache with per-entry
// expiry.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

const defaultMaxEntries = 1024

type entry struct {
	value     domain.ClassificationResult
	expiresAt time.Time
}

// Cache implements ports.ClassificationCache. The LRU bounds size and applies
// maxTTL to every entry; a shorter ttl passed to Set is checked on Get.
type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// New builds a cache holding at most maxEntries results. A zero maxTTL leaves
// expiry to the per-entry ttl.
func New(maxEntries int, maxTTL time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Cache{
		lru: expirable.NewLRU[string, entry](maxEntries, nil, maxTTL),
		now: time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) (domain.ClassificationResult, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return domain.ClassificationResult{}, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return domain.ClassificationResult{}, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A zero ttl never expires before maxTTL.
func (c *Cache) Set(_ context.Context, key string, value domain.ClassificationResult, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
