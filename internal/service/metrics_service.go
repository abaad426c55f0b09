package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the gateway's
// notification pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheEvictions   prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
	fallbackServed   prometheus.Counter
	categorizeTime   prometheus.Histogram
	statePersists    prometheus.Counter
}

// NewMetricsService registers all collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_cache_hits_total",
		Help: "Notification cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_cache_misses_total",
		Help: "Notification cache misses",
	})

	cacheEvictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_cache_evictions_total",
		Help: "Entries evicted from the notification cache",
	})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of school server requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	fallbackServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_fallback_served_total",
		Help: "Times the offline fallback dataset was served",
	})

	categorizeTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_categorize_duration_seconds",
		Help:    "Duration of the single-pass categorizer",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	statePersists := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "read_state_persists_total",
		Help: "Debounced read-state writes completed",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		cacheEvictions, upstreamDuration, fallbackServed, categorizeTime, statePersists, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		cacheEvictions:   cacheEvictions,
		upstreamDuration: upstreamDuration,
		fallbackServed:   fallbackServed,
		categorizeTime:   categorizeTime,
		statePersists:    statePersists,
	}
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

// RecordCacheLookup counts a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordCacheEviction counts an evicted cache entry.
func (m *MetricsService) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// ObserveUpstream records a school server call.
func (m *MetricsService) ObserveUpstream(endpoint string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

// RecordFallback counts a degraded response serving the offline dataset.
func (m *MetricsService) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbackServed.Inc()
}

// ObserveCategorize records one categorizer pass.
func (m *MetricsService) ObserveCategorize(duration time.Duration) {
	if m == nil {
		return
	}
	m.categorizeTime.Observe(duration.Seconds())
}

// RecordStatePersist counts a completed debounced read-state write.
func (m *MetricsService) RecordStatePersist() {
	if m == nil {
		return
	}
	m.statePersists.Inc()
}
