package grid

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGrid() *Grid {
	g, _ := New(squareGeom(2), NewFloat64Data([][]float64{{1, 2, 3, 4}}))
	return g
}

// TestCacheLoadsOnceUnderConcurrency exercises the same at-most-one
// concurrent load guarantee spec.md §8 scenario 5 requires of
// AuthorityCache, applied here to the grid cache's singleflight loader.
func TestCacheLoadsOnceUnderConcurrency(t *testing.T) {
	var loadCount int64
	loader := func(key string) (*Grid, error) {
		atomic.AddInt64(&loadCount, 1)
		time.Sleep(5 * time.Millisecond)
		return smallGrid(), nil
	}
	cache, err := NewCache(loader, 1<<20, nil)
	require.NoError(t, err)
	defer cache.Close()

	var wg sync.WaitGroup
	results := make([]*Grid, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := cache.Get("ntv2:conus")
			require.NoError(t, err)
			results[i] = g
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&loadCount))
	for _, g := range results {
		assert.Same(t, results[0], g)
	}
}

func TestCacheHitAvoidsReload(t *testing.T) {
	var loadCount int64
	loader := func(key string) (*Grid, error) {
		atomic.AddInt64(&loadCount, 1)
		return smallGrid(), nil
	}
	cache, err := NewCache(loader, 1<<20, nil)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Get("a")
	require.NoError(t, err)
	_, err = cache.Get("a")
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&loadCount))
}

func TestCachePropagatesLoaderError(t *testing.T) {
	loader := func(key string) (*Grid, error) {
		return nil, assert.AnError
	}
	cache, err := NewCache(loader, 1<<20, nil)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Get("missing")
	require.Error(t, err)
}
