package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all reminder engine metrics
type Metrics struct {
	// Dispatcher metrics
	RemindersSent    prometheus.Counter
	RemindersFailed  prometheus.Counter
	RemindersSkipped prometheus.Counter
	ClaimConflicts   prometheus.Counter
	DispatchLatency  prometheus.Histogram
	DueBatchSize     prometheus.Gauge
	SendDuration     *prometheus.HistogramVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all reminder engine metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total number of reminders delivered successfully",
		}),
		RemindersFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Total number of reminder delivery failures",
		}),
		RemindersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_skipped_total",
			Help:      "Total number of reminders skipped because the invoice was paid",
		}),
		ClaimConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_claim_conflicts_total",
			Help:      "Total number of claim attempts that lost the race to another worker",
		}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_tick_duration_seconds",
			Help:      "Time spent processing one dispatcher tick",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DueBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "due_batch_size",
			Help:      "Number of due reminders picked up by the last tick",
		}),
		SendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Duration of channel send attempts",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
