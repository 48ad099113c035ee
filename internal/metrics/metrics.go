// Package metrics holds the Prometheus collectors of the binding host.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "listbind"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	synchronizations *prometheus.CounterVec
	directives       *prometheus.CounterVec
	skippedLookups   prometheus.Counter
	selections       *prometheus.CounterVec
	imports          *prometheus.CounterVec
	importRows       *prometheus.CounterVec
	openSessions     prometheus.Gauge
	requests         *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		synchronizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synchronizations_total",
			Help:      "Form synchronizations by outcome.",
		}, []string{"result"}),
		directives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directives_applied_total",
			Help:      "Directives applied to controls by kind.",
		}, []string{"kind"}),
		skippedLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_lookups_total",
			Help:      "Option lists or selections skipped because their list could not be resolved.",
		}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_changes_total",
			Help:      "Selection-changed triggers by outcome.",
		}, []string{"result"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "List import runs by job and status.",
		}, []string{"job", "status"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_written_total",
			Help:      "Items written by list imports.",
		}, []string{"job"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "form_sessions_open",
			Help:      "Hosted form sessions currently open.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.synchronizations,
		m.directives,
		m.skippedLookups,
		m.selections,
		m.imports,
		m.importRows,
		m.openSessions,
		m.requests,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Synchronized records one synchronization.
func (m *Metrics) Synchronized(err error) {
	if m == nil {
		return
	}
	m.synchronizations.WithLabelValues(outcome(err)).Inc()
}

// DirectiveApplied records a directive applied to a control.
func (m *Metrics) DirectiveApplied(kind string) {
	if m == nil {
		return
	}
	m.directives.WithLabelValues(kind).Inc()
}

// LookupSkipped records a related-list or selection lookup that was skipped.
func (m *Metrics) LookupSkipped() {
	if m == nil {
		return
	}
	m.skippedLookups.Inc()
}

// SelectionChanged records one selection-changed trigger.
func (m *Metrics) SelectionChanged(err error) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(outcome(err)).Inc()
}

// ImportRun records the outcome of an import job run.
func (m *Metrics) ImportRun(job, status string, rowsWritten int) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(job, status).Inc()
	if rowsWritten > 0 {
		m.importRows.WithLabelValues(job).Add(float64(rowsWritten))
	}
}

// SessionOpened and SessionClosed track the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.openSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.openSessions.Dec()
}

// Request records one served HTTP request. route is the matched pattern,
// not the raw path.
func (m *Metrics) Request(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
