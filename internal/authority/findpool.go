package authority

import "sync"

// FindResult is an immutable set of candidate objects returned by a
// findObject query, copied on insertion so the pool never holds a
// collaborator's lazy iterator alive, per spec.md §4.5/§9.
type FindResult struct {
	Items []interface{}
}

// Finder delegates an unresolved findObject query to the data-access
// layer's finder.
type Finder func(session Session, query FindQuery) (FindResult, error)

// FindQuery is the search-configuration tuple spec.md §4.5 describes: a
// foreign object to resolve, plus the three-axis search configuration
// (search-domain ordinal, ignore-axes flag, single-vs-set flag) whose
// deterministic index selects which result set in the per-object array
// this query's results belong to.
type FindQuery struct {
	Object       interface{}
	SearchDomain int
	IgnoreAxes   bool
	SingleResult bool
}

// configIndex deterministically maps the search-configuration tuple to an
// index into a query's per-configuration result array, per spec.md
// §4.5's "deterministic index ... given the finder configuration tuple."
func (q FindQuery) configIndex() int {
	idx := q.SearchDomain << 2
	if q.IgnoreAxes {
		idx |= 1
	}
	if q.SingleResult {
		idx |= 2
	}
	return idx
}

// poolEntry holds every configuration's result set found so far for one
// queried object, plus the epoch it was last touched in.
type poolEntry struct {
	results map[int]FindResult
	epoch   uint64
}

// findPool emulates the weak-keyed map spec.md §4.5 describes ("the
// find-pool key is held by a weak reference") using the epoch-based sweep
// spec.md §9 offers as the fallback "where absent from the runtime":
// entries not touched since the previous Sweep are dropped. A small MRU
// ring records the keys of the most recently touched entries; sweep does
// not consult it, so an entry untouched since the previous sweep is
// dropped even while its key is in the ring.
type findPool struct {
	mu      sync.Mutex
	entries map[interface{}]*poolEntry
	mru     []interface{}
	mruCap  int
	epoch   uint64
}

func newFindPool(mruCap int) *findPool {
	if mruCap <= 0 {
		mruCap = 16
	}
	return &findPool{
		entries: make(map[interface{}]*poolEntry),
		mruCap:  mruCap,
	}
}

func (p *findPool) get(q FindQuery) (FindResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[q.Object]
	if !ok {
		return FindResult{}, false
	}
	res, ok := e.results[q.configIndex()]
	if !ok {
		return FindResult{}, false
	}
	e.epoch = p.epoch
	p.touchLocked(q.Object)
	return res, true
}

func (p *findPool) put(q FindQuery, res FindResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[q.Object]
	if !ok {
		e = &poolEntry{results: make(map[int]FindResult)}
		p.entries[q.Object] = e
	}
	e.results[q.configIndex()] = res
	e.epoch = p.epoch
	p.touchLocked(q.Object)
}

// touchLocked pushes key to the front of the MRU ring, evicting the
// oldest strong reference past mruCap. Callers must hold p.mu.
func (p *findPool) touchLocked(key interface{}) {
	for i, k := range p.mru {
		if k == key {
			p.mru = append(p.mru[:i], p.mru[i+1:]...)
			break
		}
	}
	p.mru = append([]interface{}{key}, p.mru...)
	if len(p.mru) > p.mruCap {
		p.mru = p.mru[:p.mruCap]
	}
}

// sweep advances the epoch and drops every entry not touched since the
// previous one.
func (p *findPool) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.epoch
	p.epoch++
	for k, e := range p.entries {
		if e.epoch < cur {
			delete(p.entries, k)
		}
	}
}
