package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Sweep cycle metrics
	SweepsTotal        prometheus.Counter
	SweepsSkipped      prometheus.Counter
	SweepDuration      prometheus.Histogram
	ObligationsScanned prometheus.Gauge

	// Delivery metrics
	Deliveries      *prometheus.CounterVec
	MarkerConflicts prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates unregistered application metrics; call Register once with the
// registry the process exposes.
func New(namespace string) *Metrics {
	return &Metrics{
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of completed scan+dispatch cycles",
		}),
		SweepsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_skipped_total",
			Help:      "Fires skipped because a previous sweep was still in flight",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent per scan+dispatch cycle",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		ObligationsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "obligations_scanned",
			Help:      "Number of open obligations examined by the last sweep",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by channel and outcome",
		}, []string{"channel", "status"}),
		MarkerConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_conflicts_total",
			Help:      "Marker compare-and-set races resolved as idempotent success",
		}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.SweepsTotal,
		m.SweepsSkipped,
		m.SweepDuration,
		m.ObligationsScanned,
		m.Deliveries,
		m.MarkerConflicts,
		m.DatabaseOperations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
