// Package metrics exposes Prometheus collectors for the state store and the
// state backend. Components accept the small interfaces below so tests and
// embedders that do not scrape metrics can pass NoopCollector.
package metrics

import "time"

const namespace = "exex"

// StorageMetrics records storage operation outcomes.
type StorageMetrics interface {
	// StorageOperation records one completed store operation. The duration
	// includes time spent waiting for the connection lock.
	StorageOperation(op string, duration time.Duration, err error)
}

// CacheMetrics records cache lookups.
type CacheMetrics interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

// Collector is implemented by collectors that serve every component.
type Collector interface {
	StorageMetrics
	CacheMetrics
}

// NoopCollector discards every observation.
type NoopCollector struct{}

var _ Collector = NoopCollector{}

func (NoopCollector) StorageOperation(string, time.Duration, error) {}
func (NoopCollector) CacheHit(string) {}
func (NoopCollector) CacheMiss(string) {}
