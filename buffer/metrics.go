package buffer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of a buffer pool.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	Flushes   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tupledb_buffer_pool_hits_total",
		Help: "Total page requests served from the buffer pool",
	})

	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tupledb_buffer_pool_misses_total",
		Help: "Total page requests that read the page from disk",
	})

	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tupledb_buffer_pool_evictions_total",
		Help: "Total clean pages evicted to make room for another page",
	})

	flushes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tupledb_buffer_pool_flushes_total",
		Help: "Total dirty pages written to disk",
	})

	reg.MustRegister(hits, misses, evictions, flushes)

	return &Metrics{
		Hits:      hits,
		Misses:    misses,
		Evictions: evictions,
		Flushes:   flushes,
	}
}
