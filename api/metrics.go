package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus instrumentation.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	buildDuration   prometheus.Histogram
	queryDuration   prometheus.Histogram
}

// NewMetrics registers the server's metrics against a fresh registry so
// tests can create independent Servers without colliding on the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nndescent_http_requests_total",
			Help: "Total HTTP requests handled, by route and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nndescent_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		buildDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "nndescent_build_duration_seconds",
			Help:    "Time spent running NN-Descent builds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		queryDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "nndescent_query_duration_seconds",
			Help:    "Time spent answering query-batch requests.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
	}
}

func (m *Metrics) middleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
