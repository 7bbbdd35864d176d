package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// PrometheusCollector implements Collector on top of Prometheus vectors.
type PrometheusCollector struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	cache      *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collectors and registers them with reg.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "number of store operations, by operation and result",
		}, []string{"op", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "store operation latency including lock wait",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "cache_lookups_total",
			Help:      "backend cache lookups, by cache and outcome",
		}, []string{"cache", "outcome"}),
	}

	for _, col := range []prometheus.Collector{c.operations, c.durations, c.cache} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *PrometheusCollector) StorageOperation(op string, duration time.Duration, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	c.operations.WithLabelValues(op, result).Inc()
	c.durations.WithLabelValues(op).Observe(duration.Seconds())
}

func (c *PrometheusCollector) CacheHit(cache string) {
	c.cache.WithLabelValues(cache, "hit").Inc()
}

func (c *PrometheusCollector) CacheMiss(cache string) {
	c.cache.WithLabelValues(cache, "miss").Inc()
}
