// Package cache stores the (id, label) option lists shown by selection UIs.
//
// Two implementations exist: an in-process LRU (default) and Redis for
// deployments running several instances. Entries expire after a TTL and are
// invalidated explicitly when the catalog changes.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/amazonmart/pkg/types"
)

// Well-known keys
const (
	KeyCustomerOptions = "customer_options"
	KeyProductOptions  = "product_options"
)

// DefaultTTL bounds how stale a cached option list may get
const DefaultTTL = 5 * time.Minute

// Cache stores option lists by key
type Cache interface {
	// GetOptions returns the cached list and whether it was present
	GetOptions(ctx context.Context, key string) ([]types.Option, bool, error)
	SetOptions(ctx context.Context, key string, options []types.Option) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

type entry struct {
	options []types.Option
	expires time.Time
}

// LRU is an in-process Cache with LRU eviction
type LRU struct {
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

// NewLRU creates an LRU cache holding up to maxLen lists
func NewLRU(maxLen int, ttl time.Duration) *LRU {
	if maxLen <= 0 {
		maxLen = 64
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache, err := lru.New[string, entry](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		cache, _ = lru.New[string, entry](64)
	}
	return &LRU{cache: cache, ttl: ttl, now: time.Now}
}

// GetOptions returns a copy of the cached list so callers cannot mutate it
func (c *LRU) GetOptions(_ context.Context, key string) ([]types.Option, bool, error) {
	e, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if c.now().After(e.expires) {
		c.cache.Remove(key)
		return nil, false, nil
	}

	options := make([]types.Option, len(e.options))
	copy(options, e.options)
	return options, true, nil
}

func (c *LRU) SetOptions(_ context.Context, key string, options []types.Option) error {
	stored := make([]types.Option, len(options))
	copy(stored, options)
	c.cache.Add(key, entry{options: stored, expires: c.now().Add(c.ttl)})
	return nil
}

func (c *LRU) Invalidate(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.cache.Remove(key)
	}
	return nil
}

// Size returns the number of cached lists
func (c *LRU) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *LRU) Clear() {
	c.cache.Purge()
}

func (c *LRU) Close() error {
	c.cache.Purge()
	return nil
}

var (
	_ Cache = (*LRU)(nil)
	_ Cache = (*Redis)(nil)
)
