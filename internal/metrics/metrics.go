// Package metrics provides Prometheus metrics for the transit dashboard.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upstream fetch outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeUnknownStop = "unknown_stop"
	OutcomeRateLimited = "rate_limited"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics (inbound API traffic)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream PRIM fetch metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration prometheus.Histogram
	FetchRetriesTotal       prometheus.Counter
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter

	// Poll loop metrics
	PollCyclesTotal   prometheus.Counter
	PollCycleDuration prometheus.Histogram
	MonitoredStops    prometheus.Gauge
	StopsInError      prometheus.Gauge

	// Event stream metrics
	SSESubscribers prometheus.Gauge
	SSEEventsTotal prometheus.Counter

	// Stop index database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	// logger for error reporting
	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	// cancel stops the DB stats collector goroutine
	cancel context.CancelFunc

	// wg tracks the DB stats collector goroutine for graceful shutdown
	wg sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transit_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	upstreamRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_upstream_requests_total",
			Help: "Total number of PRIM stop-monitoring requests by outcome",
		},
		[]string{"outcome"},
	)

	upstreamRequestDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transit_upstream_request_duration_seconds",
		Help:    "PRIM stop-monitoring request latency distribution",
		Buckets: prometheus.DefBuckets,
	})

	fetchRetriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_fetch_retries_total",
		Help: "Total number of retried stop-monitoring requests",
	})

	cacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_snapshot_cache_hits_total",
		Help: "Total number of departure fetches served from the snapshot cache",
	})

	cacheMissesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_snapshot_cache_misses_total",
		Help: "Total number of departure fetches that went upstream",
	})

	pollCyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_poll_cycles_total",
		Help: "Total number of completed poll cycles",
	})

	pollCycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transit_poll_cycle_duration_seconds",
		Help:    "Poll cycle duration distribution",
		Buckets: prometheus.DefBuckets,
	})

	monitoredStops := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_monitored_stops",
		Help: "Number of monitored stop subscriptions in the current configuration",
	})

	stopsInError := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_stops_in_error",
		Help: "Number of monitored stops whose latest snapshot is an error",
	})

	sseSubscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_sse_subscribers",
		Help: "Number of connected event-stream subscribers",
	})

	sseEventsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_sse_events_total",
		Help: "Total number of dashboard updates pushed to event-stream subscribers",
	})

	dbConnectionsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_stopdb_connections_open",
		Help: "Number of open stop index database connections",
	})

	dbConnectionsInUse := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_stopdb_connections_in_use",
		Help: "Number of stop index database connections currently in use",
	})

	dbWaitSecondsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transit_stopdb_wait_seconds_total",
		Help: "Total time blocked waiting for a stop index database connection",
	})

	// Register all metrics with the custom registry
	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		upstreamRequestsTotal,
		upstreamRequestDuration,
		fetchRetriesTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		pollCyclesTotal,
		pollCycleDuration,
		monitoredStops,
		stopsInError,
		sseSubscribers,
		sseEventsTotal,
		dbConnectionsOpen,
		dbConnectionsInUse,
		dbWaitSecondsTotal,
	)

	return &Metrics{
		Registry:                registry,
		HTTPRequestsTotal:       httpRequestsTotal,
		HTTPRequestDuration:     httpRequestDuration,
		UpstreamRequestsTotal:   upstreamRequestsTotal,
		UpstreamRequestDuration: upstreamRequestDuration,
		FetchRetriesTotal:       fetchRetriesTotal,
		CacheHitsTotal:          cacheHitsTotal,
		CacheMissesTotal:        cacheMissesTotal,
		PollCyclesTotal:         pollCyclesTotal,
		PollCycleDuration:       pollCycleDuration,
		MonitoredStops:          monitoredStops,
		StopsInError:            stopsInError,
		SSESubscribers:          sseSubscribers,
		SSEEventsTotal:          sseEventsTotal,
		DBConnectionsOpen:       dbConnectionsOpen,
		DBConnectionsInUse:      dbConnectionsInUse,
		DBWaitSecondsTotal:      dbWaitSecondsTotal,
		logger:                  logger,
	}
}

// RecordUpstreamRequest tracks one stop-monitoring call.
func (m *Metrics) RecordUpstreamRequest(outcome string, duration time.Duration) {
	m.UpstreamRequestsTotal.WithLabelValues(outcome).Inc()
	m.UpstreamRequestDuration.Observe(duration.Seconds())
}

// StartDBStatsCollector starts a goroutine that periodically collects stop
// index connection pool statistics and updates the corresponding metrics.
// The interval specifies how often to collect stats.
// This method is idempotent - calling it multiple times has no effect after the first call.
// Call Shutdown() to stop the collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}

	// Prevent spawning multiple collectors
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in DB stats collector", "error", r)
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))

				// Add the delta of wait duration since last check
				waitDelta := stats.WaitDuration - lastWaitDuration
				if waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// This method is safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
