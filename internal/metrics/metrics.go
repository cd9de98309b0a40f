// Package metrics exposes Prometheus instrumentation for the master
// and worker processes: HTTP/WebSocket traffic, session counts, cache
// hit ratio, broker round trips, and rendezvous wait outcomes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for one process (master or
// worker). New registers every collector with the default registry;
// collectors a process does not exercise simply stay at zero.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SessionsActive *prometheus.GaugeVec
	SessionsTotal  *prometheus.CounterVec

	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	BrokerRequests *prometheus.CounterVec
	BrokerDuration prometheus.Histogram
	BreakerState   prometheus.Gauge

	RendezvousWaits    prometheus.Counter
	RendezvousTimeouts prometheus.Counter
	RendezvousDuration prometheus.Histogram

	Uptime    prometheus.Gauge
	startTime time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds current metric values for a lightweight JSON status API.
type Snapshot struct {
	TotalRequests int64
	ActiveSessions int64
	CacheHitRatio  float64
}

// New creates a new metrics collector.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collabwsd_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collabwsd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collabwsd_sessions_active",
				Help: "Number of active sessions by kind.",
			},
			[]string{"kind"},
		),
		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collabwsd_sessions_total",
				Help: "Total number of sessions created by kind.",
			},
			[]string{"kind"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "collabwsd_ws_connections",
				Help: "Number of active WebSocket connections.",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collabwsd_ws_messages_total",
				Help: "Total number of WebSocket frames processed.",
			},
			[]string{"direction", "command"},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collabwsd_cache_hits_total",
				Help: "Total artifact cache hits by kind.",
			},
			[]string{"kind"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collabwsd_cache_misses_total",
				Help: "Total artifact cache misses by kind.",
			},
			[]string{"kind"},
		),

		BrokerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collabwsd_broker_requests_total",
				Help: "Total broker pipe requests by outcome.",
			},
			[]string{"outcome"},
		),
		BrokerDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collabwsd_broker_request_duration_seconds",
				Help:    "Broker pipe request round-trip duration in seconds.",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		BreakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "collabwsd_broker_breaker_state",
				Help: "Circuit breaker state around broker IPC (0=closed, 1=half-open, 2=open).",
			},
		),

		RendezvousWaits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collabwsd_rendezvous_waits_total",
				Help: "Total child-acquisition rendezvous calls.",
			},
		),
		RendezvousTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collabwsd_rendezvous_timeouts_total",
				Help: "Total child-acquisition rendezvous calls that timed out.",
			},
		),
		RendezvousDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collabwsd_rendezvous_duration_seconds",
				Help:    "Total time spent waiting for a worker in Acquire, across all attempts.",
				Buckets: []float64{.1, .5, 1, 2, 4, 6, 8, 10},
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "collabwsd_uptime_seconds",
				Help: "Process uptime in seconds.",
			},
		),
	}

	go m.updateUptime()
	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// RecordCacheLookup records a cache hit or miss for the given artifact kind.
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(kind).Inc()
	} else {
		m.CacheMisses.WithLabelValues(kind).Inc()
	}
}

// RecordBrokerRequest records one broker round trip.
func (m *Metrics) RecordBrokerRequest(outcome string, duration time.Duration) {
	m.BrokerRequests.WithLabelValues(outcome).Inc()
	m.BrokerDuration.Observe(duration.Seconds())
}

// RecordRendezvous records one Acquire call's outcome and total duration.
func (m *Metrics) RecordRendezvous(timedOut bool, duration time.Duration) {
	m.RendezvousWaits.Inc()
	if timedOut {
		m.RendezvousTimeouts.Inc()
	}
	m.RendezvousDuration.Observe(duration.Seconds())
}

// SetSessionsActive sets the active session gauge for kind.
func (m *Metrics) SetSessionsActive(kind string, count int) {
	m.SessionsActive.WithLabelValues(kind).Set(float64(count))
	if kind == "client" {
		m.mu.Lock()
		m.snapshot.ActiveSessions = int64(count)
		m.mu.Unlock()
	}
}

// IncSessionsTotal increments the created-sessions counter for kind.
func (m *Metrics) IncSessionsTotal(kind string) {
	m.SessionsTotal.WithLabelValues(kind).Inc()
}

// IncWSConnections increments active WebSocket connections.
func (m *Metrics) IncWSConnections() { m.WSConnections.Inc() }

// DecWSConnections decrements active WebSocket connections.
func (m *Metrics) DecWSConnections() { m.WSConnections.Dec() }

// RecordWSMessage records one WebSocket frame processed in direction
// ("in"/"out") carrying the given command name.
func (m *Metrics) RecordWSMessage(direction, command string) {
	m.WSMessages.WithLabelValues(direction, command).Inc()
}

// Snapshot returns a point-in-time copy of the lightweight status fields.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
