package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	DonationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donations_created_total",
			Help: "Total number of donations created by kind",
		},
		[]string{"kind"},
	)
	DonationsConfirmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_confirmed_total",
			Help: "Total number of donations confirmed by recipients",
		},
	)
	DonationsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_expired_total",
			Help: "Total number of stale donations expired by the background job",
		},
	)
	DreamsClosedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dreams_closed_total",
			Help: "Total number of dreams that reached their goal",
		},
	)
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)
	ExchangeRateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exchange_rate_eur",
			Help: "Last fetched EUR rate per currency",
		},
		[]string{"currency"},
	)
)

// InitMetrics registers the application metrics once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(DonationsCreatedTotal)
	prometheus.MustRegister(DonationsConfirmedTotal)
	prometheus.MustRegister(DonationsExpiredTotal)
	prometheus.MustRegister(DreamsClosedTotal)
	prometheus.MustRegister(RegistrationsTotal)
	prometheus.MustRegister(ExchangeRateGauge)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
