package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClaimDuplicate(t *testing.T) {
	cache := NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("job-1"))
	require.True(t, cache.Claim("job-1"))
	require.True(t, cache.IsSeen("job-1"))
	require.False(t, cache.Claim("job-1"))
}

func TestClaimTTLExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(10, time.Minute)
	cache.now = func() time.Time { return now }

	require.True(t, cache.Claim("job-2"))
	now = now.Add(2 * time.Minute)
	require.False(t, cache.IsSeen("job-2"))
	require.True(t, cache.Claim("job-2"))
}

func TestCapacityEvictsOldest(t *testing.T) {
	cache := NewCache(1, time.Minute)
	require.True(t, cache.Claim("first"))
	require.True(t, cache.Claim("second"))

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
}

func TestRelease(t *testing.T) {
	cache := NewCache(10, time.Minute)
	require.True(t, cache.Claim("job-3"))
	cache.Release("job-3")
	require.False(t, cache.IsSeen("job-3"))
	require.True(t, cache.Claim("job-3"))
}

func TestClaimIsExclusiveUnderConcurrency(t *testing.T) {
	cache := NewCache(100, time.Minute)
	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.Claim("shared") {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), winners)
}
