package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NCMetrics tracks the NC workflow and the HTTP surface in front of it.
type NCMetrics struct {
	registry        *prometheus.Registry
	transitions     *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	created         *prometheus.CounterVec
	exportRuns      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry so several instances
// can live in one process (tests, CLI subcommands).
func New() *NCMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &NCMetrics{
		registry: reg,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qualitrack_nc_transitions_total",
			Help: "NC status transitions by source and target status",
		}, []string{"from", "to"}),
		operationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qualitrack_nc_operation_errors_total",
			Help: "Rejected or failed NC operations by kind",
		}, []string{"operation", "kind"}),
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qualitrack_nc_created_total",
			Help: "NCs registered by severity",
		}, []string{"severity"}),
		exportRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qualitrack_export_runs_total",
			Help: "Scheduled and manual export runs by outcome",
		}, []string{"outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qualitrack_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route", "code"}),
	}
}

func (m *NCMetrics) Created(severity string) {
	m.created.WithLabelValues(severity).Inc()
}

func (m *NCMetrics) Transition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *NCMetrics) Failed(operation, kind string) {
	m.operationErrors.WithLabelValues(operation, kind).Inc()
}

func (m *NCMetrics) ExportFinished(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.exportRuns.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one HTTP request. Call with time.Now() taken when
// the request started.
func (m *NCMetrics) ObserveRequest(method, route string, code int, start time.Time) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
}

func (m *NCMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
