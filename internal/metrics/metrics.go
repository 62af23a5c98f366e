// Package metrics holds the Prometheus collectors of the roster service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"roster/internal/ledger"
)

// Metrics records ledger commands and persistence.
type Metrics struct {
	operations   *prometheus.CounterVec
	saveSeconds  prometheus.Histogram
	saveFailures prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger commands by operation and outcome.",
		}, []string{"operation", "outcome"}),
		saveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roster",
			Subsystem: "store",
			Name:      "save_seconds",
			Help:      "Time spent writing the roster state.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "store",
			Name:      "save_failures_total",
			Help:      "State writes that failed.",
		}),
	}
	reg.MustRegister(m.operations, m.saveSeconds, m.saveFailures)
	return m
}

// Operation counts one ledger command.
func (m *Metrics) Operation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// Saved observes one state write.
func (m *Metrics) Saved(elapsed time.Duration, err error) {
	m.saveSeconds.Observe(elapsed.Seconds())
	if err != nil {
		m.saveFailures.Inc()
	}
}

// RegisterStatus exposes roster_students{status} computed from stats on
// every scrape.
func RegisterStatus(reg prometheus.Registerer, stats func() ledger.Stats) error {
	for status, pick := range map[string]func(ledger.Stats) int{
		"active":  func(s ledger.Stats) int { return s.Active },
		"overdue": func(s ledger.Stats) int { return s.Overdue },
	} {
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "roster",
			Name:        "students",
			Help:        "Students by derived status.",
			ConstLabels: prometheus.Labels{"status": status},
		}, func() float64 { return float64(pick(stats())) })
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
