package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Plan outcomes reported by MetricsService.ObservePlan.
const (
	PlanOutcomeComplete = "complete"
	PlanOutcomeExtended = "extended"
	PlanOutcomePartial  = "partial"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduler API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	planDuration    prometheus.Histogram
	plansTotal      *prometheus.CounterVec
	forcedConflicts prometheus.Histogram
	unplacedExams   *prometheus.CounterVec
	skippedFixed    *prometheus.CounterVec
	exportJobs      *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	planDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exam_schedule_plan_duration_seconds",
		Help:    "Time spent computing all plan strategies for one request",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	})

	plansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_schedule_plans_total",
		Help: "Plans computed, by outcome of the conflict-free strategies",
	}, []string{"outcome"})

	forcedConflicts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exam_schedule_forced_conflicts",
		Help:    "Total student conflicts in forced plans",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	unplacedExams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_schedule_unplaced_exams_total",
		Help: "Exams left without a date, by strategy",
	}, []string{"strategy"})

	skippedFixed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_schedule_skipped_fixed_total",
		Help: "Fixed overrides that were not applied, by reason",
	}, []string{"reason"})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_schedule_export_jobs_total",
		Help: "Asynchronous export jobs by final status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration,
		planDuration, plansTotal, forcedConflicts, unplacedExams, skippedFixed, exportJobs,
		goroutines,
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		planDuration:    planDuration,
		plansTotal:      plansTotal,
		forcedConflicts: forcedConflicts,
		unplacedExams:   unplacedExams,
		skippedFixed:    skippedFixed,
		exportJobs:      exportJobs,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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
	if total := hits + misses; total > 0 {
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

// PlanObservation summarises one computed plan.
type PlanObservation struct {
	Outcome          string
	Duration         time.Duration
	ForcedConflicts  int
	ExtendedUnplaced int
	ForcedUnplaced   int
	SkippedReasons   []string
}

// ObservePlan records the outcome of a planning run.
func (m *MetricsService) ObservePlan(obs PlanObservation) {
	if m == nil {
		return
	}
	m.planDuration.Observe(obs.Duration.Seconds())
	m.plansTotal.WithLabelValues(obs.Outcome).Inc()
	m.forcedConflicts.Observe(float64(obs.ForcedConflicts))
	if obs.ExtendedUnplaced > 0 {
		m.unplacedExams.WithLabelValues("extended").Add(float64(obs.ExtendedUnplaced))
	}
	if obs.ForcedUnplaced > 0 {
		m.unplacedExams.WithLabelValues("forced").Add(float64(obs.ForcedUnplaced))
	}
	for _, reason := range obs.SkippedReasons {
		m.skippedFixed.WithLabelValues(reason).Inc()
	}
}

// ObserveExportJob counts an export job reaching a final status.
func (m *MetricsService) ObserveExportJob(status string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(status).Inc()
}
