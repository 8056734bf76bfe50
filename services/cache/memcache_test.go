package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ CacheService = (*MemcacheService)(nil)
	_ CacheService = (*LRUService)(nil)
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(context.Background()); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("test_key", []byte("test_value"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("test_key")
	assert.NoError(t, err)
	assert.Equal(t, "test_value", string(value))

	err = mc.Delete("test_key")
	assert.NoError(t, err)

	_, err = mc.Get("test_key")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, mc.Delete("test_key"))
}

func TestLRUService(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLRUService(2)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Set("amazon.in_rate_limited", []byte("1"), time.Minute))
	v, err := l.Get("amazon.in_rate_limited")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	now = now.Add(time.Minute)
	_, err = l.Get("amazon.in_rate_limited")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, l.Set("a", []byte("a"), 0))
	require.NoError(t, l.Set("b", []byte("b"), 0))
	require.NoError(t, l.Set("c", []byte("c"), 0))
	_, err = l.Get("a")
	assert.ErrorIs(t, err, ErrMiss, "oldest entry evicted")

	require.NoError(t, l.Delete("c"))
	_, err = l.Get("c")
	assert.ErrorIs(t, err, ErrMiss)

	now = now.Add(24 * time.Hour)
	v, err = l.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", string(v))
}
