package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tesslc"

// Cache lookup results.
const (
	Hit     = "hit"
	DiskHit = "disk_hit"
	Miss    = "miss"
)

// Metrics exposes Prometheus collectors for the retrieval pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	cacheLookups        *prometheus.CounterVec
	backgroundFetches   *prometheus.CounterVec
	materializations    *prometheus.CounterVec
	materializeDuration *prometheus.HistogramVec
	timelineLoads       *prometheus.CounterVec
}

// New registers the collectors with reg. Collectors that are already
// registered are reused so several instances can share one registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		backgroundFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_fetches_total",
			Help:      "Background catalog fetches by final state.",
		}, []string{"state"}),
		materializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materializations_total",
			Help:      "Lightcurve materializations by authority and result.",
		}, []string{"authority", "result"}),
		materializeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialize_duration_seconds",
			Help:      "Latency of lightcurve materialization.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"authority"}),
		timelineLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_loads_total",
			Help:      "Momentum-dump timeline loads by source.",
		}, []string{"source"}),
	}

	var err error
	if m.cacheLookups, err = register(reg, m.cacheLookups); err != nil {
		return nil, err
	}
	if m.backgroundFetches, err = register(reg, m.backgroundFetches); err != nil {
		return nil, err
	}
	if m.materializations, err = register(reg, m.materializations); err != nil {
		return nil, err
	}
	if m.materializeDuration, err = register(reg, m.materializeDuration); err != nil {
		return nil, err
	}
	if m.timelineLoads, err = register(reg, m.timelineLoads); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

func (m *Metrics) CacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) BackgroundFetch(state string) {
	if m == nil {
		return
	}
	m.backgroundFetches.WithLabelValues(state).Inc()
}

func (m *Metrics) Materialized(authority string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.materializations.WithLabelValues(authority, result).Inc()
	m.materializeDuration.WithLabelValues(authority).Observe(took.Seconds())
}

func (m *Metrics) TimelineLoad(source string) {
	if m == nil {
		return
	}
	m.timelineLoads.WithLabelValues(source).Inc()
}
