package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission queue and the sync
// reconciler. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	SyncCycles      *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
	AdoptedStatuses *prometheus.CounterVec
}

// New registers the registrar metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_submissions_total",
			Help: "Outbound operations by kind and outcome (success, transient, unclassified, permanent, exhausted)",
		}, []string{"kind", "outcome"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_queue_depth",
			Help: "Number of pending queued operations",
		}),
		SyncCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_sync_tab_total",
			Help: "Tab reconciliations by tab and outcome (ok, fetch_error, malformed, store_error)",
		}, []string{"tab", "outcome"}),
		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_sync_duration_seconds",
			Help:    "Duration of a full sync cycle across all tabs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		AdoptedStatuses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_adopted_statuses_total",
			Help: "Server statuses adopted into local declarations",
		}, []string{"status"}),
	}
}

// IncSubmission records the outcome of one outbound call.
func (m *Metrics) IncSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

// SetQueueDepth records the number of pending operations.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// IncSyncTab records the outcome of reconciling one tab.
func (m *Metrics) IncSyncTab(tab, outcome string) {
	if m == nil {
		return
	}
	m.SyncCycles.WithLabelValues(tab, outcome).Inc()
}

// IncAdopted records a server status adopted locally.
func (m *Metrics) IncAdopted(status string) {
	if m == nil {
		return
	}
	m.AdoptedStatuses.WithLabelValues(status).Inc()
}

// ObserveSync records the duration of a sync cycle.
// Call with time.Now() at the start of the cycle.
func (m *Metrics) ObserveSync(start time.Time) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(time.Since(start).Seconds())
}
