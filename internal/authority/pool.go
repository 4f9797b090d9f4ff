package authority

import (
	"context"
	"sync"
	"time"

	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// pollResolution is TIMEOUT_RESOLUTION from spec.md §8 scenario 6: the
// safety poll a session-wait performs in case a Broadcast was missed. The
// idle-cleanup task reschedules itself after the pool's timeout, not at
// this resolution.
const pollResolution = 200 * time.Millisecond

type idleSession struct {
	session      Session
	lastReleased time.Time
}

// leaseKey is the context key a Lease is threaded through so a second
// Acquire on the same logical caller (the same goroutine chain, carried
// via context) is recognized as reentrant rather than deadlocking against
// itself.
type leaseKey struct{}

type lease struct {
	session Session
	depth   int
}

// Pool is the bounded, reentrant session pool described in spec.md §4.5:
// at most maxConcurrent sessions total, callers block on an exhausted
// pool, and the same caller re-entering before releasing gets the same
// session back with a depth counter instead of a second lease.
type Pool struct {
	factory SessionFactory
	timeout time.Duration

	mu               sync.Mutex
	cond             *sync.Cond
	idle             []*idleSession
	remainingSlots   int
	cleanupScheduled bool
	closed           bool

	metrics *Metrics
}

// NewPool builds a pool bounded by maxConcurrent sessions, each closed
// after timeout of inactivity.
func NewPool(factory SessionFactory, maxConcurrent int, timeout time.Duration, metrics *Metrics) *Pool {
	p := &Pool{factory: factory, timeout: timeout, remainingSlots: maxConcurrent, metrics: metrics}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Acquire leases a session, returning a context carrying the lease (for
// reentrant Acquire calls further down the same call chain) and a release
// function the caller must call exactly once per Acquire call.
func (p *Pool) Acquire(ctx context.Context) (context.Context, Session, func() error, error) {
	if existing, ok := ctx.Value(leaseKey{}).(*lease); ok {
		existing.depth++
		return ctx, existing.session, func() error {
			p.releaseLease(existing)
			return nil
		}, nil
	}

	session, err := p.acquireFromPool(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}
	l := &lease{session: session, depth: 1}
	leasedCtx := context.WithValue(ctx, leaseKey{}, l)
	return leasedCtx, session, func() error {
		p.releaseLease(l)
		return nil
	}, nil
}

func (p *Pool) releaseLease(l *lease) {
	l.depth--
	if l.depth > 0 {
		return
	}
	p.release(l.session)
}

func (p *Pool) acquireFromPool(ctx context.Context) (Session, error) {
	p.mu.Lock()
	for {
		if n := len(p.idle); n > 0 {
			is := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			return is.session, nil
		}
		if p.remainingSlots > 0 {
			p.remainingSlots--
			p.mu.Unlock()
			session, err := p.factory.NewSession()
			if err != nil {
				p.mu.Lock()
				p.remainingSlots++ // restore: newSession failed, no session leaked
				p.mu.Unlock()
				return nil, geoerrors.Wrap(geoerrors.CodeTransientUnavailability, "authority: failed to create session", err)
			}
			if p.metrics != nil {
				p.metrics.SessionsCreated.Inc()
			}
			return session, nil
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return nil, geoerrors.Wrap(geoerrors.CodeTransientUnavailability, "authority: session wait cancelled", err)
		}
		waitCh := make(chan struct{})
		go func() {
			p.cond.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
		case <-time.After(pollResolution):
			// Safety poll: re-check loop conditions even without a
			// Broadcast, per spec.md §4.5's 200ms safety poll.
			p.cond.Broadcast()
			<-waitCh
		}
	}
}

func (p *Pool) release(session Session) {
	p.mu.Lock()
	p.idle = append(p.idle, &idleSession{session: session, lastReleased: time.Now()})
	if !p.cleanupScheduled && !p.closed {
		p.cleanupScheduled = true
		time.AfterFunc(p.timeout, p.closeExpired)
	}
	if p.metrics != nil {
		p.metrics.SessionsReleased.Inc()
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// closeExpired closes every session idle for longer than timeout and
// reschedules itself if any session remains idle, per spec.md §4.5's
// deferred close-expired task.
func (p *Pool) closeExpired() {
	p.mu.Lock()
	p.cleanupScheduled = false
	now := time.Now()
	kept := p.idle[:0]
	var expired []*idleSession
	for _, is := range p.idle {
		if now.Sub(is.lastReleased) >= p.timeout {
			expired = append(expired, is)
		} else {
			kept = append(kept, is)
		}
	}
	p.idle = kept
	p.remainingSlots += len(expired)
	if len(p.idle) > 0 && !p.closed {
		p.cleanupScheduled = true
		time.AfterFunc(p.timeout, p.closeExpired)
	}
	p.mu.Unlock()

	for _, is := range expired {
		if err := is.session.Close(); err != nil {
			// Background cleanup failures are logged and swallowed per
			// spec.md §7's propagation policy; logging is left to the
			// caller via Metrics (SessionCloseErrors), not this package,
			// to avoid an ambient logger dependency inside a pool tick.
			if p.metrics != nil {
				p.metrics.SessionCloseErrors.Inc()
			}
		}
		if p.metrics != nil {
			p.metrics.SessionsTimedOut.Inc()
		}
	}
	if len(expired) > 0 {
		p.cond.Broadcast()
	}
}

// Close closes every idle session; sessions currently leased are
// preserved and returned to the (still-usable) pool on release. If
// closing one session errors, the rest are still closed and the first
// error is returned with the rest attached as suppressed causes, per
// spec.md §4.5's failure semantics.
func (p *Pool) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.remainingSlots += len(idle)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, is := range idle {
		if err := is.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	first := geoerrors.Wrap(geoerrors.CodeTransientUnavailability, "authority: error closing one or more idle sessions", errs[0])
	first.WithSuppressed(errs[1:]...)
	return first
}
