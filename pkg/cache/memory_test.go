package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIncrementRestartsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(time.Hour))
	defer mc.Close()

	n, err := mc.Increment(ctx, "runs:42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := mc.Expire(ctx, "runs:42", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = mc.Increment(ctx, "runs:42")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	time.Sleep(40 * time.Millisecond)

	n, err = mc.Increment(ctx, "runs:42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired counter must start over")
}

func TestMemoryDeleteResetsCounter(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for i := 0; i < 3; i++ {
		_, err := mc.Increment(ctx, "runs:7")
		require.NoError(t, err)
	}
	require.NoError(t, mc.Delete(ctx, "runs:7", "missing"))

	n, err := mc.Increment(ctx, "runs:7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := mc.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	for _, k := range []string{"a", "b", "c"} {
		_, err := mc.Increment(ctx, k)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	n, err := mc.Increment(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = mc.Increment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "least recently used key should have been evicted")
}

func TestMemoryCleanupRemovesExpiredAndStopsOnClose(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(5 * time.Millisecond))

	_, err := mc.Increment(ctx, "k")
	require.NoError(t, err)
	_, err = mc.Expire(ctx, "k", time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mc.mutex.RLock()
		defer mc.mutex.RUnlock()
		return len(mc.data) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, mc.Close())
	require.NoError(t, mc.Close())
	select {
	case <-mc.stopped:
	default:
		t.Fatal("cleanup loop still running after Close")
	}
}
