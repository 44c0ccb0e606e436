package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the worker registers and
// serves on /metrics. No code in this module increments them.
type Metrics struct {
	Registry *prometheus.Registry

	CasesStarted    prometheus.Counter
	CasesCompleted  *prometheus.CounterVec
	ActivityErrors  *prometheus.CounterVec
	SignalsIgnored  prometheus.Counter
	CommitteeLatency prometheus.Histogram
}

// NewMetrics constructs and registers the collector set against a fresh
// registry rather than the global default one, so multiple test
// instances never collide on metric names.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		CasesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "cases_started_total",
			Help:      "Number of order intake cases started.",
		}),
		CasesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "cases_completed_total",
			Help:      "Number of order intake cases reaching a terminal status, labeled by final status.",
		}, []string{"status"}),
		ActivityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "activity_errors_total",
			Help:      "Number of activity errors, labeled by activity name and error kind.",
		}, []string{"activity", "kind"}),
		SignalsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderflow",
			Name:      "signals_ignored_total",
			Help:      "Number of signals delivered out of the accepting status.",
		}),
		CommitteeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orderflow",
			Name:      "committee_run_seconds",
			Help:      "Wall-clock latency of a full committee run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.CasesStarted, m.CasesCompleted, m.ActivityErrors, m.SignalsIgnored, m.CommitteeLatency)
	return m
}
