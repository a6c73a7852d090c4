package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/amazonmart/pkg/types"
)

var sample = []types.Option{{ID: 1, Label: "Ada Lovelace"}, {ID: 2, Label: "Alan Turing"}}

func TestLRU(t *testing.T) {
	ctx := context.Background()

	t.Run("basic operations", func(t *testing.T) {
		cache := NewLRU(3, time.Minute)

		_, ok, err := cache.GetOptions(ctx, KeyCustomerOptions)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, cache.SetOptions(ctx, KeyCustomerOptions, sample))
		got, ok, err := cache.GetOptions(ctx, KeyCustomerOptions)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sample, got)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("returns copies", func(t *testing.T) {
		cache := NewLRU(3, time.Minute)
		require.NoError(t, cache.SetOptions(ctx, KeyProductOptions, sample))

		got, _, _ := cache.GetOptions(ctx, KeyProductOptions)
		got[0].Label = "mutated"

		again, _, _ := cache.GetOptions(ctx, KeyProductOptions)
		assert.Equal(t, "Ada Lovelace", again[0].Label)
	})

	t.Run("expiry", func(t *testing.T) {
		cache := NewLRU(3, time.Minute)
		now := time.Now()
		cache.now = func() time.Time { return now }
		require.NoError(t, cache.SetOptions(ctx, KeyProductOptions, sample))

		cache.now = func() time.Time { return now.Add(2 * time.Minute) }
		_, ok, err := cache.GetOptions(ctx, KeyProductOptions)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewLRU(2, time.Minute)
		for i := 0; i < 3; i++ {
			require.NoError(t, cache.SetOptions(ctx, fmt.Sprintf("k%d", i), sample))
		}
		assert.Equal(t, 2, cache.Size())
		_, ok, _ := cache.GetOptions(ctx, "k0")
		assert.False(t, ok)
	})

	t.Run("invalidate and clear", func(t *testing.T) {
		cache := NewLRU(10, time.Minute)
		require.NoError(t, cache.SetOptions(ctx, KeyCustomerOptions, sample))
		require.NoError(t, cache.SetOptions(ctx, KeyProductOptions, sample))

		require.NoError(t, cache.Invalidate(ctx, KeyCustomerOptions))
		_, ok, _ := cache.GetOptions(ctx, KeyCustomerOptions)
		assert.False(t, ok)
		assert.Equal(t, 1, cache.Size())

		cache.Clear()
		assert.Equal(t, 0, cache.Size())
		assert.NoError(t, cache.Close())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewLRU(100, time.Minute)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				key := fmt.Sprintf("key-%d", n)
				for j := 0; j < 50; j++ {
					_ = cache.SetOptions(ctx, key, sample)
					_, _, _ = cache.GetOptions(ctx, key)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, cache.Size())
	})
}

func TestRedis_GenerateKey(t *testing.T) {
	r := NewRedis("localhost:0", "amazonmart", 0)
	defer r.Close()

	assert.Equal(t, "amazonmart:options:product_options", r.GenerateKey("options", KeyProductOptions))
	assert.Equal(t, DefaultTTL, r.ttl)
}

// TestRedis_RoundTrip runs against a live server named by AMAZONMART_TEST_REDIS_ADDR
func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("AMAZONMART_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AMAZONMART_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	r := NewRedis(addr, fmt.Sprintf("amazonmart-test-%d", time.Now().UnixNano()), time.Minute)
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	_, ok, err := r.GetOptions(ctx, KeyCustomerOptions)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.SetOptions(ctx, KeyCustomerOptions, sample))
	got, ok, err := r.GetOptions(ctx, KeyCustomerOptions)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample, got)

	require.NoError(t, r.Invalidate(ctx, KeyCustomerOptions))
	_, ok, err = r.GetOptions(ctx, KeyCustomerOptions)
	require.NoError(t, err)
	assert.False(t, ok)
}
