package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "swappi_indexer"

// Metrics holds the applier metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsApplied      *prometheus.CounterVec
	EventsSkipped      prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	LastProcessedBlock prometheus.Gauge
	ApplyDuration      *prometheus.HistogramVec
	EntitiesCreated    *prometheus.CounterVec
}

// NewMetrics registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EventsApplied: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Typed events applied to the entity store, by event name.",
		}, []string{"event"}),

		EventsSkipped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Typed events at or before the checkpoint that were skipped.",
		}),

		ErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors while applying events, by kind.",
		}, []string{"kind"}),

		LastProcessedBlock: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_processed_block",
			Help:      "Block number of the last applied event.",
		}),

		ApplyDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying a single event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),

		EntitiesCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_created_total",
			Help:      "Entities created, by entity kind.",
		}, []string{"entity"}),
	}
}

func (m *Metrics) ObserveApplied(event string, block uint64, took time.Duration) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(event).Inc()
	m.ApplyDuration.WithLabelValues(event).Observe(took.Seconds())
	m.LastProcessedBlock.Set(float64(block))
}

func (m *Metrics) ObserveSkipped() {
	if m == nil {
		return
	}
	m.EventsSkipped.Inc()
}

func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCreated(entity string) {
	if m == nil {
		return
	}
	m.EntitiesCreated.WithLabelValues(entity).Inc()
}
