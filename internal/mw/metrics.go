package mw

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Requests   *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
	Admissions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "throttled_http_requests_total",
			Help: "Total HTTP requests processed",
		}, []string{"route", "method", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "throttled_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "throttled_admissions_total",
			Help: "Admission checks per guard, by outcome (admitted, denied, error)",
		}, []string{"guard", "outcome"}),
	}
	reg.MustRegister(m.Requests, m.Latency, m.Admissions)
	return m
}

// RecordAdmission makes Metrics a ratelimit.Recorder.
func (m *Metrics) RecordAdmission(guard string, admitted bool) {
	outcome := "denied"
	if admitted {
		outcome = "admitted"
	}
	m.Admissions.WithLabelValues(guard, outcome).Inc()
}

// RecordError counts a check whose ledger was unreachable under outcome="error".
func (m *Metrics) RecordError(guard string) {
	m.Admissions.WithLabelValues(guard, "error").Inc()
}

type routeKeyType string

const routeKey routeKeyType = "route"

func WithRoute(next http.Handler, routeName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(context.WithValue(r.Context(), routeKey, routeName))
		next.ServeHTTP(w, r)
	})
}

func RouteName(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func Instrument(m *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &StatusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		route := RouteName(r.Context())
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(sw.code())).Inc()
		m.Latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
