// Package metrics exposes sync cycle metrics in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/sync"
)

const namespace = "ordersync"

// Registry holds the cycle metrics.
type Registry struct {
	reg *prometheus.Registry

	Cycles            *prometheus.CounterVec // outcome
	CycleSeconds      prometheus.Histogram
	FetchErrors       *prometheus.CounterVec // kind
	RecordsActive     prometheus.Gauge
	RecordsChanged    *prometheus.CounterVec // op
	OrdersSkipped     prometheus.Counter
	DegenerateSplits  prometheus.Counter
	EnhancementMisses *prometheus.CounterVec // field
	EnhancementFailed *prometheus.CounterVec // field
	LastSuccess       prometheus.Gauge
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		reg: r,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Sync cycles by outcome.",
		}, []string{"outcome"}),
		CycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Carrier fetch failures by kind.",
		}, []string{"kind"}),
		RecordsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_active",
			Help:      "Rows in the active record set after the last cycle.",
		}),
		RecordsChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_changed_total",
			Help:      "Rows written by operation.",
		}, []string{"op"}),
		OrdersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_skipped_total",
			Help:      "Upstream orders skipped for a missing or repeated id.",
		}),
		DegenerateSplits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_splits_total",
			Help:      "Orders split equally because no line had a positive price.",
		}),
		EnhancementMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enhancement_misses_total",
			Help:      "Fields filled with a placeholder.",
		}, []string{"field"}),
		EnhancementFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enhancement_failures_total",
			Help:      "Enhancers that could not run.",
		}, []string{"field"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}),
	}
	r.MustRegister(
		m.Cycles, m.CycleSeconds, m.FetchErrors, m.RecordsActive, m.RecordsChanged,
		m.OrdersSkipped, m.DegenerateSplits, m.EnhancementMisses, m.EnhancementFailed,
		m.LastSuccess,
	)
	return m
}

// Handler serves the registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry for tests and custom exporters.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// ObserveCycle records a completed cycle. err is the error Sync returned.
func (m *Registry) ObserveCycle(res *sync.Result, err error) {
	if err != nil {
		m.Cycles.WithLabelValues(Outcome(err)).Inc()
		if errors.IsFetchError(err) {
			m.FetchErrors.WithLabelValues(FetchErrorKind(err)).Inc()
		}
		if res != nil {
			m.CycleSeconds.Observe(res.Duration.Seconds())
		}
		return
	}
	if res == nil {
		return
	}

	outcome := "unchanged"
	switch {
	case res.DryRun:
		outcome = "dry_run"
	case res.Written():
		outcome = "written"
	}
	m.Cycles.WithLabelValues(outcome).Inc()
	m.CycleSeconds.Observe(res.Duration.Seconds())
	m.RecordsActive.Set(float64(res.Rows))
	m.OrdersSkipped.Add(float64(res.SkippedOrders))
	m.DegenerateSplits.Add(float64(res.DegenerateSplits))
	m.LastSuccess.Set(float64(res.StartedAt.Time.Add(res.Duration).Unix()))

	if w := res.Write; w != nil {
		m.RecordsChanged.WithLabelValues("insert").Add(float64(w.Inserted))
		m.RecordsChanged.WithLabelValues("update").Add(float64(w.Updated))
		m.RecordsChanged.WithLabelValues("delete").Add(float64(w.Deleted))
	}
	for field, n := range res.Enhancement.Misses {
		m.EnhancementMisses.WithLabelValues(field).Add(float64(n))
	}
	for field, n := range res.Enhancement.Failed {
		m.EnhancementFailed.WithLabelValues(field).Add(float64(n))
	}
}

// Outcome names the failure class of a cycle error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.IsFetchError(err):
		return "fetch_error"
	case errors.IsConflict(err):
		return "conflict"
	case errors.Is(err, errors.ErrCanceled):
		return "canceled"
	default:
		return "store_error"
	}
}

// FetchErrorKind names the fetch failure kind.
func FetchErrorKind(err error) string {
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsUnavailable(err):
		return "unavailable"
	case errors.Is(err, errors.ErrUnauthorized):
		return "unauthorized"
	case errors.IsUpstreamRejected(err):
		return "rejected"
	case errors.IsMalformedResponse(err):
		return "malformed"
	default:
		return "other"
	}
}
