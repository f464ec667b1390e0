package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "mileage_api"

// MetricsService owns the Prometheus registry for the API and the
// recalculation tool. All methods are safe on a nil receiver.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	cacheLatency  prometheus.Observer
	cacheWrite    prometheus.Observer
	cacheHitRatio prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter

	mileageWrites *prometheus.CounterVec
	mileageStatus *prometheus.CounterVec
	skippedImages prometheus.Counter
	recalculated  prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

func histogram(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
}

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewMetricsService registers the HTTP, cache, database and mileage workflow
// collectors plus the Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry:        prometheus.NewRegistry(),
		requestDuration: histogram("", "http_request_duration_seconds", "Duration of HTTP requests in seconds", "method", "path", "status"),
		requestTotal:    counter("", "http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		dbQueryDuration: histogram("", "db_query_duration_seconds", "Duration of database queries", "query"),
		mileageWrites:   counter("mileage", "writes_total", "Mileage workflow writes by operation and outcome", "operation", "outcome"),
		mileageStatus:   counter("mileage", "status_assigned_total", "Status tiers assigned to persisted mileage records", "status", "source"),
	}
	cacheLatency := histogram("cache", "latency_seconds", "Latency for summary cache lookups")
	cacheWrite := histogram("cache", "write_seconds", "Latency for summary cache writes")
	cacheHits := counter("cache", "hits_total", "Summary cache hits")
	cacheMisses := counter("cache", "misses_total", "Summary cache misses")
	skipped := counter("mileage", "images_skipped_total", "Uploaded images rejected by the content type or size rule")
	recalculated := counter("mileage", "recalculated_total", "Records changed by the recalculation utility")
	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration, m.requestTotal, m.dbQueryDuration,
		cacheLatency, cacheWrite, cacheHits, cacheMisses, m.cacheHitRatio,
		m.mileageWrites, m.mileageStatus, skipped, recalculated,
	)

	m.cacheLatency = cacheLatency.WithLabelValues()
	m.cacheWrite = cacheWrite.WithLabelValues()
	m.cacheHits = cacheHits.WithLabelValues()
	m.cacheMisses = cacheMisses.WithLabelValues()
	m.skippedImages = skipped.WithLabelValues()
	m.recalculated = recalculated.WithLabelValues()
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// TrackQueueDepth exports depth() as a gauge labelled with the queue name.
func (m *MetricsService) TrackQueueDepth(queue string, depth func() int) {
	if m == nil || depth == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "jobs",
		Name:        "queue_depth",
		Help:        "Jobs waiting in an in-process queue",
		ConstLabels: prometheus.Labels{"queue": queue},
	}, func() float64 { return float64(depth()) }))
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordMileageWrite counts a workflow write such as submit/created or edit/updated.
func (m *MetricsService) RecordMileageWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.mileageWrites.WithLabelValues(operation, outcome).Inc()
}

// RecordMileageStatus counts a status tier written by the engine or an override.
func (m *MetricsService) RecordMileageStatus(status, source string) {
	if m == nil || status == "" {
		return
	}
	m.mileageStatus.WithLabelValues(status, source).Inc()
}

// RecordSkippedImages adds n rejected uploads.
func (m *MetricsService) RecordSkippedImages(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedImages.Add(float64(n))
}

// RecordRecalculated adds n records repaired by recalculation.
func (m *MetricsService) RecordRecalculated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recalculated.Add(float64(n))
}
