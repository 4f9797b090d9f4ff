package authority

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct{ id string }

func (s *fakeSession) ID() string   { return s.id }
func (s *fakeSession) Close() error { return nil }

type fakeFactory struct {
	n int32
}

func (f *fakeFactory) NewSession() (Session, error) {
	n := atomic.AddInt32(&f.n, 1)
	return &fakeSession{id: "sess-" + strconv.Itoa(int(n))}, nil
}

// TestCreateConcurrentSameKeySingleBackendCall is scenario 5 from
// spec.md §8: 100 concurrent Create(CRS, "EPSG:4326") calls must invoke
// the back-end creator exactly once and all observe the same instance.
func TestCreateConcurrentSameKeySingleBackendCall(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)

	var backendCalls int32
	create := func(session Session, typeTag, code string) (interface{}, error) {
		atomic.AddInt32(&backendCalls, 1)
		time.Sleep(5 * time.Millisecond) // widen the race window
		return &struct{ Code string }{Code: code}, nil
	}
	cache := NewCache(pool, create, nil, 256, nil)

	const n = 100
	results := make([]interface{}, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := cache.Create(context.Background(), "CRS", "EPSG:4326")
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&backendCalls))
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestCreateNormalizesNamespacePrefix(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)

	var seenCodes []string
	var mu sync.Mutex
	create := func(session Session, typeTag, code string) (interface{}, error) {
		mu.Lock()
		seenCodes = append(seenCodes, code)
		mu.Unlock()
		return code, nil
	}
	cache := NewCache(pool, create, nil, 256, nil)

	v1, err := cache.Create(context.Background(), "CRS", "EPSG:4326")
	require.NoError(t, err)
	v2, err := cache.Create(context.Background(), "CRS", "  4326  ")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, []string{"4326"}, seenCodes)
}

func TestCreateRespectsCacheablePredicate(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)

	var calls int32
	create := func(session Session, typeTag, code string) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return code, nil
	}
	neverCacheable := func(typeTag, code string, obj interface{}) bool { return false }
	cache := NewCache(pool, create, neverCacheable, 256, nil)

	_, err := cache.Create(context.Background(), "CRS", "4326")
	require.NoError(t, err)
	_, err = cache.Create(context.Background(), "CRS", "4326")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCacheLRUDemotesOldestPastBudget(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 8, time.Minute, nil)
	create := func(session Session, typeTag, code string) (interface{}, error) {
		return &struct{ Code string }{Code: code}, nil
	}
	cache := NewCache(pool, create, nil, 2, nil)

	_, err := cache.Create(context.Background(), "CRS", "1")
	require.NoError(t, err)
	_, err = cache.Create(context.Background(), "CRS", "2")
	require.NoError(t, err)
	_, err = cache.Create(context.Background(), "CRS", "3")
	require.NoError(t, err)

	cache.mu.Lock()
	strongCount := len(cache.strong)
	cache.mu.Unlock()
	assert.LessOrEqual(t, strongCount, 2)
}

func TestFindObjectCachesCopiedResult(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)
	cache := NewCache(pool, nil, nil, 256, nil)

	var calls int32
	finder := func(session Session, q FindQuery) (FindResult, error) {
		atomic.AddInt32(&calls, 1)
		return FindResult{Items: []interface{}{"a", "b"}}, nil
	}
	q := FindQuery{Object: "some-foreign-crs", SearchDomain: 1}

	r1, err := cache.FindObject(context.Background(), q, finder)
	require.NoError(t, err)
	r2, err := cache.FindObject(context.Background(), q, finder)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, r1.Items, r2.Items)

	// Mutating the returned slice must not affect the cached copy.
	r1.Items[0] = "mutated"
	r3, err := cache.FindObject(context.Background(), q, finder)
	require.NoError(t, err)
	assert.Equal(t, "a", r3.Items[0])
}

func TestFindObjectConfigIndexDistinguishesQueries(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)
	cache := NewCache(pool, nil, nil, 256, nil)

	var calls int32
	finder := func(session Session, q FindQuery) (FindResult, error) {
		atomic.AddInt32(&calls, 1)
		return FindResult{Items: []interface{}{q.SearchDomain}}, nil
	}

	_, err := cache.FindObject(context.Background(), FindQuery{Object: "x", SearchDomain: 1}, finder)
	require.NoError(t, err)
	_, err = cache.FindObject(context.Background(), FindQuery{Object: "x", SearchDomain: 2}, finder)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSweepFindPoolDropsUntouchedEntries(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)
	cache := NewCache(pool, nil, nil, 256, nil)

	finder := func(session Session, q FindQuery) (FindResult, error) {
		return FindResult{Items: []interface{}{"v"}}, nil
	}
	q := FindQuery{Object: "foreign"}
	_, err := cache.FindObject(context.Background(), q, finder)
	require.NoError(t, err)

	cache.SweepFindPool()
	cache.SweepFindPool()

	cache.find.mu.Lock()
	_, present := cache.find.entries[q.Object]
	cache.find.mu.Unlock()
	assert.False(t, present)
}

func TestCacheCloseClosesIdleSessionsOnly(t *testing.T) {
	factory := &fakeFactory{}
	pool := NewPool(factory, 4, time.Minute, nil)
	create := func(session Session, typeTag, code string) (interface{}, error) {
		return "ok", nil
	}
	cache := NewCache(pool, create, nil, 256, nil)

	_, err := cache.Create(context.Background(), "CRS", "4326")
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	// The factory remains usable: a subsequent Create still works.
	v, err := cache.Create(context.Background(), "CRS", "4327")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
