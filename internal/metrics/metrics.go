// Package metrics tracks the process-wide aggregate the frontend
// updates exactly once per client query, and renders it both as the
// rewrite-not-append metrics CSV and as Prometheus counters plus a
// success-latency histogram for ambient observability alongside it.
package metrics

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time read of the aggregate, safe to format or
// print without holding the Aggregate's lock.
type Snapshot struct {
	TotalQueries int64
	Successes    int64
	Failures     int64
	CacheHits    int64
	AvgLatencyMs float64
	ThroughputQPS float64
	CacheHitPct  float64
}

// Aggregate is the process-wide metrics collector (§3). All mutation
// happens through RecordSuccess/RecordFailure, called exactly once per
// client query at its conclusion.
type Aggregate struct {
	mu sync.Mutex

	totalQueries int64
	successes    int64
	failures     int64
	cacheHits    int64
	cumLatencyMs float64

	start time.Time

	promQueries  prometheus.Counter
	promSuccess  prometheus.Counter
	promFailure  prometheus.Counter
	promCacheHit prometheus.Counter
	promLatency  prometheus.Histogram
}

// New creates an Aggregate with its clock started now and its
// Prometheus collectors registered against reg.
func New(reg prometheus.Registerer) *Aggregate {
	a := &Aggregate{
		start: time.Now(),
		promQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolverd_queries_total",
			Help: "Total client queries received.",
		}),
		promSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolverd_success_total",
			Help: "Queries resolved to an IP.",
		}),
		promFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolverd_failure_total",
			Help: "Queries that exhausted the frontier without an answer.",
		}),
		promCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolverd_cache_hits_total",
			Help: "Queries answered directly from the A-record cache.",
		}),
		promLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolverd_success_latency_ms",
			Help:    "End-to-end latency of successful resolutions, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(a.promQueries, a.promSuccess, a.promFailure, a.promCacheHit, a.promLatency)
	}
	return a
}

// RecordSuccess folds in one successful query, along with whether it
// was served from cache.
func (a *Aggregate) RecordSuccess(latencyMs float64, fromCache bool) {
	a.mu.Lock()
	a.totalQueries++
	a.successes++
	a.cumLatencyMs += latencyMs
	if fromCache {
		a.cacheHits++
	}
	a.mu.Unlock()

	a.promQueries.Inc()
	a.promSuccess.Inc()
	if fromCache {
		a.promCacheHit.Inc()
	}
	a.promLatency.Observe(latencyMs)
}

// RecordFailure folds in one query that failed to resolve.
func (a *Aggregate) RecordFailure() {
	a.mu.Lock()
	a.totalQueries++
	a.failures++
	a.mu.Unlock()

	a.promQueries.Inc()
	a.promFailure.Inc()
}

// Snapshot reads the current aggregate values.
func (a *Aggregate) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		TotalQueries: a.totalQueries,
		Successes:    a.successes,
		Failures:     a.failures,
		CacheHits:    a.cacheHits,
	}
	if a.successes > 0 {
		s.AvgLatencyMs = a.cumLatencyMs / float64(a.successes)
	}
	if elapsed := time.Since(a.start).Seconds(); elapsed > 0 {
		s.ThroughputQPS = float64(a.totalQueries) / elapsed
	}
	if a.totalQueries > 0 {
		s.CacheHitPct = float64(a.cacheHits) / float64(a.totalQueries) * 100
	}
	return s
}

// WriteCSV rewrites path with the two-row metrics CSV: header then the
// current snapshot. Called after every query per §6 - rewrite, not
// append.
func (a *Aggregate) WriteCSV(path string) error {
	s := a.Snapshot()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "Total Queries,Success,Failed,Avg Latency (ms),Throughput (qps),% Cache Resolved"); err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%d,%d,%d,%.2f,%.2f,%.2f\n",
		s.TotalQueries, s.Successes, s.Failures, s.AvgLatencyMs, s.ThroughputQPS, s.CacheHitPct)
	return err
}
