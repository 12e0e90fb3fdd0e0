package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechbox",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "speechbox",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	sessionUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechbox",
			Subsystem: "sessions",
			Name:      "updates_total",
			Help:      "Session state and field updates by kind.",
		},
		[]string{"update"},
	)

	tokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "speechbox",
			Subsystem: "tokens",
			Name:      "issued_total",
			Help:      "Participation tokens claimed from the pool.",
		},
	)

	tokensExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "speechbox",
			Subsystem: "tokens",
			Name:      "pool_exhausted_total",
			Help:      "Token requests that found the pool empty.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechbox",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Token notification attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		sessionUpdates,
		tokensIssued,
		tokensExhausted,
		notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// UnmatchedRoute labels requests that matched no chi route.
const UnmatchedRoute = "unmatched"

// InstrumentHandler records request counts and latency per chi route pattern.
// Requests without a pattern share one series so arbitrary paths cannot add labels.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := UnmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordSessionUpdate counts one applied session update.
func RecordSessionUpdate(name string) {
	sessionUpdates.WithLabelValues(name).Inc()
}

// RecordTokenIssued counts one successful token claim.
func RecordTokenIssued() {
	tokensIssued.Inc()
}

// RecordPoolExhausted counts one token request rejected for lack of tokens.
func RecordPoolExhausted() {
	tokensExhausted.Inc()
}

// RecordNotification counts one notification attempt; result is "sent", "failed" or "dropped".
func RecordNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}
