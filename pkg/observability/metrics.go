package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/canopy/pkg/domain"
)

const namespace = "canopy"

// Metrics holds the collectors fed by Hooks.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	PrefetchHits    prometheus.Counter
	DecodeErrors    prometheus.Counter
	RemoteCalls     *prometheus.CounterVec
	RemoteDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of element and function requests sent",
		}, []string{"method", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time until response headers arrived",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Fetches served from a session's memo",
		}),
		PrefetchHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_hits_total",
			Help:      "Fetches that consumed a prefetched response",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Responses whose body could not be decoded",
		}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote function invocations",
		}, []string{"func_id", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Time until a remote call's elements were decoded",
			Buckets:   prometheus.DefBuckets,
		}, []string{"func_id"}),
	}

	collectors := []prometheus.Collector{
		m.Requests, m.RequestDuration, m.CacheHits, m.PrefetchHits,
		m.DecodeErrors, m.RemoteCalls, m.RemoteDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRequest: func(_ context.Context, e *domain.FetchEvent) {
			m.Requests.WithLabelValues(e.Method, outcome(e.Err)).Inc()
			m.RequestDuration.WithLabelValues(e.Method).Observe(e.Duration.Seconds())
		},
		OnCacheHit: func(context.Context, *domain.FetchEvent) {
			m.CacheHits.Inc()
		},
		OnPrefetchHit: func(context.Context, *domain.FetchEvent) {
			m.PrefetchHits.Inc()
		},
		OnDecodeError: func(context.Context, *domain.FetchEvent) {
			m.DecodeErrors.Inc()
		},
		OnRemoteCall: func(_ context.Context, e *domain.RemoteCallEvent) {
			m.RemoteCalls.WithLabelValues(e.FuncID, outcome(e.Err)).Inc()
			m.RemoteDuration.WithLabelValues(e.FuncID).Observe(e.Duration.Seconds())
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
