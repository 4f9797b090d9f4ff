package authority

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus instruments the authority cache and session
// pool publish, mirroring the teacher's internal/cache/metrics.go counters
// generalized to a session pool and an object/find cache pair.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionsReleased   prometheus.Counter
	SessionsTimedOut   prometheus.Counter
	SessionCloseErrors prometheus.Counter

	ObjectHits      prometheus.Counter
	ObjectMisses    prometheus.Counter
	ObjectEvictions prometheus.Counter

	FindHits   prometheus.Counter
	FindMisses prometheus.Counter
}

// NewMetrics constructs and registers a Metrics set against reg. reg may
// be nil, in which case the instruments are created but never registered
// (useful for tests that don't want a global registry touched).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsCreated:    prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_sessions_created_total"}),
		SessionsReleased:   prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_sessions_released_total"}),
		SessionsTimedOut:   prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_sessions_timed_out_total"}),
		SessionCloseErrors: prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_session_close_errors_total"}),
		ObjectHits:         prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_object_cache_hits_total"}),
		ObjectMisses:       prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_object_cache_misses_total"}),
		ObjectEvictions:    prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_object_cache_evictions_total"}),
		FindHits:           prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_find_cache_hits_total"}),
		FindMisses:         prometheus.NewCounter(prometheus.CounterOpts{Name: "geocore_authority_find_cache_misses_total"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SessionsCreated, m.SessionsReleased, m.SessionsTimedOut, m.SessionCloseErrors,
			m.ObjectHits, m.ObjectMisses, m.ObjectEvictions,
			m.FindHits, m.FindMisses,
		)
	}
	return m
}
