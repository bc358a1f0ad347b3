package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the oracle network's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oracle_network",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle_network",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oracle_network",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle_network",
			Subsystem: "feeds",
			Name:      "submissions_total",
			Help:      "Accepted oracle submissions.",
		},
		[]string{"kind"},
	)

	finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle_network",
			Subsystem: "feeds",
			Name:      "finalizations_total",
			Help:      "Rounds finalized into a consensus record.",
		},
		[]string{"kind"},
	)

	confidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oracle_network",
			Subsystem: "feeds",
			Name:      "consensus_confidence_bps",
			Help:      "Confidence of finalized consensus records in basis points.",
			Buckets:   prometheus.LinearBuckets(1000, 1000, 10),
		},
		[]string{"kind"},
	)

	reputationAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle_network",
			Subsystem: "reputation",
			Name:      "adjustments_total",
			Help:      "Reputation adjustments by direction.",
		},
		[]string{"direction"},
	)

	disputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oracle_network",
			Subsystem: "disputes",
			Name:      "transitions_total",
			Help:      "Dispute state transitions.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		submissions,
		finalizations,
		confidence,
		reputationAdjustments,
		disputes,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency. Routes are labelled
// by their mux template so feed ids do not explode cardinality.
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

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

func RecordSubmission(kind string) {
	submissions.WithLabelValues(kind).Inc()
}

func RecordFinalization(kind string, confidenceBps uint32) {
	finalizations.WithLabelValues(kind).Inc()
	confidence.WithLabelValues(kind).Observe(float64(confidenceBps))
}

// RecordReputationAdjustment counts one adjustment by its sign.
func RecordReputationAdjustment(delta int64) {
	switch {
	case delta > 0:
		reputationAdjustments.WithLabelValues("reward").Inc()
	case delta < 0:
		reputationAdjustments.WithLabelValues("penalty").Inc()
	}
}

func RecordDispute(status string) {
	disputes.WithLabelValues(status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
