package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the auth and HTTP collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LoginAttempts   *prometheus.CounterVec
	RefreshOutcomes *prometheus.CounterVec
	Breaches        prometheus.Counter
	SecuredRetries  *prometheus.CounterVec
	SessionsSwept   prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simcasi_auth_login_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		RefreshOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simcasi_auth_refresh_total",
			Help: "Refresh attempts by rotation outcome.",
		}, []string{"outcome"}),
		Breaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simcasi_auth_breach_total",
			Help: "Refresh token reuse detections.",
		}),
		SecuredRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simcasi_secured_retry_total",
			Help: "Refresh-and-retry cycles run by protected operations, by result.",
		}, []string{"result"}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simcasi_sessions_swept_total",
			Help: "Expired sessions hard-deleted by the sweeper.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simcasi_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}

	registry.MustRegister(
		m.LoginAttempts,
		m.RefreshOutcomes,
		m.Breaches,
		m.SecuredRetries,
		m.SessionsSwept,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBreach() {
	if m == nil {
		return
	}
	m.Breaches.Inc()
}

func (m *Metrics) ObserveRetry(result string) {
	if m == nil {
		return
	}
	m.SecuredRetries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument counts requests by method and response status.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
