// Package metrics owns the Prometheus collectors for the API and scan pipeline.
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

const namespace = "blogspy"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"method", "path"})

	scans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "total",
		Help:      "Scans by outcome (cached, committed, partial, insufficient_credits, total_failure, refund_failed, ledger_error, invalid).",
	}, []string{"outcome"})

	scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "End-to-end duration of uncached scans.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	refundFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "refund_failures_total",
		Help:      "Refunds that failed and need manual reconciliation.",
	})

	providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Provider calls by result status.",
	}, []string{"provider", "status"})

	providerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "latency_seconds",
		Help:      "Provider call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"provider"})

	creditsMoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_total",
		Help:      "Credits moved through the ledger by transaction type.",
	}, []string{"type"})

	rescanJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "rescans_total",
		Help:      "Background rescans by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		scans,
		scanDuration,
		refundFailures,
		providerCalls,
		providerLatency,
		creditsMoved,
		rescanJobs,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordScan counts one scan outcome. duration is ignored for cached scans.
func RecordScan(outcome string, duration time.Duration) {
	scans.WithLabelValues(outcome).Inc()
	if outcome != "cached" && duration > 0 {
		scanDuration.Observe(duration.Seconds())
	}
}

func RecordRefundFailure() { refundFailures.Inc() }

// RecordProvider counts one provider call. status is visible, hidden or error.
func RecordProvider(provider, status string, latency time.Duration) {
	providerCalls.WithLabelValues(provider, status).Inc()
	providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

func RecordCredits(txType string, amount int) {
	if amount < 0 {
		amount = -amount
	}
	creditsMoved.WithLabelValues(txType).Add(float64(amount))
}

func RecordRescan(result string) { rescanJobs.WithLabelValues(result).Inc() }

// InstrumentHandler wraps next with request count, latency and in-flight metrics.
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

		path := canonicalPath(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath prefers the matched mux pattern so path parameters do not
// explode label cardinality.
func canonicalPath(r *http.Request) string {
	if r.Pattern != "" {
		if _, p, ok := strings.Cut(r.Pattern, " "); ok {
			return p
		}
		return r.Pattern
	}
	return "unmatched"
}
