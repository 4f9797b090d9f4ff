package authority

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"

	"github.com/arxgeo/geocore/internal/logger"
)

// cacheKey identifies a cached geodetic object by its type tag (e.g.
// "GeodeticCRS", "Ellipsoid", "Datum") and normalized authority code.
type cacheKey struct {
	typeTag string
	code    string
}

func (k cacheKey) String() string { return k.typeTag + ":" + k.code }

// normalizeCode trims a namespace prefix ("EPSG:4326" -> "4326") and
// surrounding whitespace, per spec.md §4.5 step 1.
func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if idx := strings.LastIndexByte(code, ':'); idx >= 0 {
		code = code[idx+1:]
	}
	return strings.TrimSpace(code)
}

// box is the pointee every weak.Pointer in the cache targets: the weak
// package only tracks pointers, so a cached interface{} value is boxed
// once and both the strong and weak tiers reference the same *box.
type box struct {
	key   cacheKey
	value interface{}
}

// Cacheable decides whether a freshly created object is worth caching,
// per spec.md §4.5 step 4's isCacheable(code, obj) check.
type Cacheable func(typeTag, code string, obj interface{}) bool

// Cache is C5 AuthorityCache: a concurrent cache of geodetic objects keyed
// by (type, normalized code), fronting a bounded pool of non-thread-safe
// data-access sessions (Pool). Entries are retained strongly up to
// MaxStrongEntries, then LRU-demoted to a weak reference beyond that, so a
// live holder elsewhere keeps a demoted value reachable without the cache
// itself pinning memory, per spec.md §3's CacheEntry lifecycle ("evicted
// by LRU (strong refs up to N, then weak/soft beyond)").
type Cache struct {
	pool      *Pool
	create    Creator
	cacheable Cacheable
	maxStrong int
	metrics   *Metrics
	log       *logger.Logger

	// group guarantees at-most-one concurrent back-end create call per
	// (type, normalized-code) key, the per-key striped lock spec.md §4.5
	// step 3 and §5's ordering guarantee call for.
	group singleflight.Group

	mu     sync.Mutex
	strong map[cacheKey]*list.Element // list.Element.Value is *box
	order  *list.List                 // most-recently-used at the front
	weak   map[cacheKey]weak.Pointer[box]

	find *findPool
}

// NewCache builds an AuthorityCache leasing sessions from pool, using
// create to produce objects on a cache miss and cacheable to decide
// whether a produced object is retained. maxStrongEntries bounds the
// number of strongly-held entries before LRU demotion to a weak
// reference; a value <= 0 defaults to 256.
func NewCache(pool *Pool, create Creator, cacheable Cacheable, maxStrongEntries int, metrics *Metrics) *Cache {
	if maxStrongEntries <= 0 {
		maxStrongEntries = 256
	}
	return &Cache{
		pool:      pool,
		create:    create,
		cacheable: cacheable,
		maxStrong: maxStrongEntries,
		metrics:   metrics,
		log:       logger.With("authority-cache"),
		strong:    make(map[cacheKey]*list.Element),
		order:     list.New(),
		weak:      make(map[cacheKey]weak.Pointer[box]),
		find:      newFindPool(16),
	}
}

// Create returns the cached object for (typeTag, code), leasing a session
// and invoking the typed creator on a miss. Concurrent calls for the same
// (typeTag, normalized code) produce exactly one back-end creation call,
// per spec.md §5's ordering guarantee; all callers observing the same key
// receive the same object instance.
func (c *Cache) Create(ctx context.Context, typeTag, code string) (interface{}, error) {
	key := cacheKey{typeTag: typeTag, code: normalizeCode(code)}

	if v, ok := c.lookup(key); ok {
		c.hit()
		return v, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		if v, ok := c.lookup(key); ok {
			c.hit()
			return v, nil
		}
		c.miss()

		_, session, release, err := c.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		obj, err := c.create(session, typeTag, key.code)
		if err != nil {
			return nil, err
		}
		if c.cacheable == nil || c.cacheable(typeTag, key.code, obj) {
			c.store(key, obj)
		}
		return obj, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Cache) hit() {
	if c.metrics != nil {
		c.metrics.ObjectHits.Inc()
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.ObjectMisses.Inc()
	}
}

func (c *Cache) lookup(key cacheKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.strong[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*box).value, true
	}
	if wp, ok := c.weak[key]; ok {
		if b := wp.Value(); b != nil {
			c.promoteLocked(key, b)
			return b.value, true
		}
		delete(c.weak, key)
	}
	return nil, false
}

func (c *Cache) store(key cacheKey, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promoteLocked(key, &box{key: key, value: value})
}

// promoteLocked inserts or refreshes key at the front of the LRU order as
// a strong reference, evicting the coldest strong entries to the weak
// tier if this pushes the strong set over its budget. Callers must hold
// c.mu.
func (c *Cache) promoteLocked(key cacheKey, b *box) {
	if el, ok := c.strong[key]; ok {
		el.Value = b
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(b)
	c.strong[key] = el
	delete(c.weak, key)
	c.evictLocked()
}

func (c *Cache) evictLocked() {
	for len(c.strong) > c.maxStrong {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		b := oldest.Value.(*box)
		delete(c.strong, b.key)
		c.weak[b.key] = weak.Make(b)
		if c.metrics != nil {
			c.metrics.ObjectEvictions.Inc()
		}
	}
}

// Close closes every idle session in the underlying pool. Sessions
// currently leased are preserved; the cache remains usable afterwards
// (sessions are created as needed on the next miss), per spec.md §4.5.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// FindObject delegates query to finder on a miss and caches the
// (copied, immutable) result set under the pool's epoch-based retention
// policy. See findPool for the "weak key -> per-configuration result
// array" semantics from spec.md §4.5/§9.
func (c *Cache) FindObject(ctx context.Context, query FindQuery, finder Finder) (FindResult, error) {
	if res, ok := c.find.get(query); ok {
		if c.metrics != nil {
			c.metrics.FindHits.Inc()
		}
		return res, nil
	}
	if c.metrics != nil {
		c.metrics.FindMisses.Inc()
	}

	_, session, release, err := c.pool.Acquire(ctx)
	if err != nil {
		return FindResult{}, err
	}
	defer release()

	res, err := finder(session, query)
	if err != nil {
		return FindResult{}, err
	}
	// Defensive copy: the pool must not hold a collaborator's lazy
	// iterator alive, per spec.md §4.5/§9.
	copied := FindResult{Items: append([]interface{}(nil), res.Items...)}
	c.find.put(query, copied)
	return copied, nil
}

// SweepFindPool drops find-pool entries untouched since the previous
// sweep, the epoch-based emulation of a weak-keyed map spec.md §9
// suggests where the runtime has no native weak map for arbitrary keys.
func (c *Cache) SweepFindPool() {
	c.find.sweep()
}
