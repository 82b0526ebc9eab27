package httpproxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch modes recorded on the requests_total metric.
const (
	modeForward = "forward"
	modeLocal   = "local"
	modeWelcome = "welcome"
)

// Metrics holds all Prometheus metrics for the proxy.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	rewritesTotal   prometheus.Counter
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	ruleCount       prometheus.Gauge
	reloads         prometheus.Counter
	reloadErrs      prometheus.Counter
	tunnelsTotal    prometheus.Counter
	tunnelErrors    prometheus.Counter
	activeTunnels   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "requests_total",
			Help:      "Total number of requests dispatched, by mode.",
		}, []string{"method", "mode"}),

		rewritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "rewrites_total",
			Help:      "Number of requests whose target was rewritten by a rule.",
		}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "httpproxy",
			Name:      "request_duration_seconds",
			Help:      "Forwarded request duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "status"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "errors_total",
			Help:      "Number of synthesized error responses, by status.",
		}, []string{"status"}),

		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "upstream_errors_total",
			Help:      "Number of upstream connection errors.",
		}, []string{"host"}),

		ruleCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpproxy",
			Name:      "rule_count",
			Help:      "Number of active rewrite rules.",
		}),

		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "rule_reloads_total",
			Help:      "Number of successful rule set reloads.",
		}),

		reloadErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "rule_reload_errors_total",
			Help:      "Number of failed rule set reloads.",
		}),

		tunnelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "tunnels_total",
			Help:      "Number of CONNECT tunnels attempted.",
		}),

		tunnelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "httpproxy",
			Name:      "tunnel_errors_total",
			Help:      "Number of tunnel dial or relay failures.",
		}),

		activeTunnels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "httpproxy",
			Name:      "active_tunnels",
			Help:      "Number of currently open CONNECT tunnels.",
		}),

		registry: reg,
	}

	reg.MustRegister(
		m.requestsTotal,
		m.rewritesTotal,
		m.requestDuration,
		m.errorsTotal,
		m.upstreamErrors,
		m.ruleCount,
		m.reloads,
		m.reloadErrs,
		m.tunnelsTotal,
		m.tunnelErrors,
		m.activeTunnels,
	)

	return m
}

// Handler returns an http.Handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a dispatched request.
func (m *Metrics) RecordRequest(method, mode string) {
	m.requestsTotal.WithLabelValues(method, mode).Inc()
}

// RecordRewrite records a rule-rewritten request.
func (m *Metrics) RecordRewrite() {
	m.rewritesTotal.Inc()
}

// RecordRequestDuration records the duration of a forwarded request.
func (m *Metrics) RecordRequestDuration(method string, statusCode int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(statusCode)).Observe(d.Seconds())
}

// RecordError records a synthesized error response.
func (m *Metrics) RecordError(status int) {
	m.errorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordUpstreamError records an upstream connection error.
func (m *Metrics) RecordUpstreamError(host string) {
	m.upstreamErrors.WithLabelValues(host).Inc()
}

// SetRuleCount sets the active rule count gauge.
func (m *Metrics) SetRuleCount(count int) {
	m.ruleCount.Set(float64(count))
}

// RecordReload records a successful rule set reload.
func (m *Metrics) RecordReload() {
	m.reloads.Inc()
}

// RecordReloadError records a failed rule set reload.
func (m *Metrics) RecordReloadError() {
	m.reloadErrs.Inc()
}

// RecordTunnel records a CONNECT tunnel attempt.
func (m *Metrics) RecordTunnel() {
	m.tunnelsTotal.Inc()
}

// RecordTunnelError records a tunnel dial or relay failure.
func (m *Metrics) RecordTunnelError() {
	m.tunnelErrors.Inc()
}

// IncActiveTunnels increments the open tunnel gauge.
func (m *Metrics) IncActiveTunnels() {
	m.activeTunnels.Inc()
}

// DecActiveTunnels decrements the open tunnel gauge.
func (m *Metrics) DecActiveTunnels() {
	m.activeTunnels.Dec()
}
