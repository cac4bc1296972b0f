// Package metrics exposes the engine's Prometheus collectors: HTTP
// read-model traffic, pipeline step throughput, processor execution
// duration, and dispatcher queue depth.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector this package registers.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "docuflow",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docuflow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	processorExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "processor",
		Name:      "executions_total",
		Help:      "Total number of processor executions, by category and outcome.",
	}, []string{"category", "status"})

	processorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docuflow",
		Subsystem: "processor",
		Name:      "execution_duration_seconds",
		Help:      "Duration of processor executions.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"category"})

	pipelineSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "pipeline",
		Name:      "steps_total",
		Help:      "Total number of orchestrator step advances, by terminal outcome.",
	}, []string{"outcome"})

	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "docuflow",
		Subsystem: "dispatcher",
		Name:      "queue_depth",
		Help:      "Number of work units waiting in the durable queue, by tenant.",
	}, []string{"tenant_id"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		processorExecutions,
		processorDuration,
		pipelineSteps,
		queueDepth,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an http.Handler with request count/latency
// collection, leaving the metrics endpoint itself uninstrumented.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordProcessorExecution records the outcome and duration of one
// ProcessorExecution, called by the orchestrator after every processor.execute.
func RecordProcessorExecution(category, status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	processorExecutions.WithLabelValues(category, status).Inc()
	processorDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// RecordPipelineStep records one orchestrator step outcome ("success" or
// "failure"; a failure that will be retried is counted as "failure").
func RecordPipelineStep(outcome string) {
	pipelineSteps.WithLabelValues(outcome).Inc()
}

// SetQueueDepth reports the current depth of a tenant's pending work units.
func SetQueueDepth(tenantID string, depth int) {
	queueDepth.WithLabelValues(tenantID).Set(float64(depth))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters (document UUIDs) so the requests_total
// cardinality doesn't grow unbounded with every distinct document.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "documents" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/documents"
	}
	if len(parts) == 2 {
		return "/documents/:uuid"
	}
	return "/documents/:uuid/" + parts[2]
}
