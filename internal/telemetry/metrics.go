package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TicketsResolved     = prometheus.NewCounter(prometheus.CounterOpts{Name: "tickets_resolved_total", Help: "Tickets resolved and submitted automatically"})
	TicketsEscalated    = prometheus.NewCounter(prometheus.CounterOpts{Name: "tickets_escalated_total", Help: "Tickets routed to the manual-review logs"})
	TicketsSkipped      = prometheus.NewCounter(prometheus.CounterOpts{Name: "tickets_skipped_total", Help: "Tickets skipped because the ledger already holds them"})
	LedgerWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_write_failures_total", Help: "Ledger writes that exhausted retries and hit the failure side-log"})
	Classifications     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "classification_total", Help: "Status classifications by category"}, []string{"category"})
	PassDuration        = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "pass_duration_seconds", Help: "Wall time of a full processing pass", Buckets: prometheus.ExponentialBuckets(0.5, 2, 10)})
	LastPassUnix        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "last_pass_timestamp_seconds", Help: "Unix time the last pass finished"})
	IntakeDepthGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "intake_depth", Help: "Items waiting in the intake source, when the source reports depth"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TicketsResolved,
			TicketsEscalated,
			TicketsSkipped,
			LedgerWriteFailures,
			Classifications,
			PassDuration,
			LastPassUnix,
			IntakeDepthGauge,
		)
	})
	return promhttp.Handler()
}
