/*
Package observability provides Prometheus collectors for the lesson engine:
advancement counts per module, history repairs, oracle failures and
persistence retries. The server command exposes them on /metrics.
*/
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's collectors.
type Metrics struct {
	Advances       *prometheus.CounterVec
	Repairs        prometheus.Counter
	OracleFailures prometheus.Counter
	SaveRetries    prometheus.Counter
	OracleLatency  prometheus.Histogram
}

// NewMetrics creates and registers the collectors. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Advances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonloop_advances_total",
				Help: "Engine advancements by module and result",
			},
			[]string{"module", "result"},
		),
		Repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonloop_history_repairs_total",
			Help: "Sessions whose persisted history required repair",
		}),
		OracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonloop_oracle_failures_total",
			Help: "Validation oracle calls normalized into incorrect outcomes",
		}),
		SaveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonloop_save_retries_total",
			Help: "Message persistence attempts that were retried",
		}),
		OracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "lessonloop_oracle_duration_seconds",
			Help: "Duration of validation oracle calls",
		}),
	}
	reg.MustRegister(m.Advances, m.Repairs, m.OracleFailures, m.SaveRetries, m.OracleLatency)
	return m
}
