package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// State dispatch
	ActionsDispatched *prometheus.CounterVec
	DispatchLatency   prometheus.Histogram
	PendingRequests   prometheus.Gauge
	EmergencyActive   prometheus.Gauge
	CorruptRecords    prometheus.Counter

	// Subscribers and push channel
	Subscribers      prometheus.Gauge
	EventsDropped    prometheus.Counter
	BrokerPublishErr prometheus.Counter

	// Store backends
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// Worker
	ArchivedEvents *prometheus.CounterVec
	PurgedRequests prometheus.Counter

	// Advisor
	AdvisorCalls *prometheus.CounterVec
}

// NewMetrics registers all metrics on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return New(namespace, prometheus.DefaultRegisterer)
}

// New registers all metrics on reg. Tests pass a fresh prometheus.NewRegistry().
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ActionsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "actions_dispatched_total",
			Help:      "Total number of dispatched state actions",
		}, []string{"action", "status"}),
		DispatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent applying a state action",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		PendingRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "pending_requests",
			Help:      "Current number of pending appointment requests",
		}),
		EmergencyActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "emergency_active",
			Help:      "1 while the emergency flag is raised",
		}),
		CorruptRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "corrupt_records_total",
			Help:      "Stored records dropped because they could not be decoded",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Current number of state subscribers",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_dropped_total",
			Help:      "Events not delivered to a slow subscriber",
		}),
		BrokerPublishErr: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broker_publish_errors_total",
			Help:      "Failed relays of state events to the broker",
		}),
		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of key-value store operations",
		}, []string{"backend", "operation", "status"}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of key-value store operations",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		}, []string{"backend", "operation"}),
		ArchivedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "archived_events_total",
			Help:      "State events written to the request archive",
		}, []string{"type", "status"}),
		PurgedRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "purged_requests_total",
			Help:      "Confirmed requests removed from the live store after retention",
		}),
		AdvisorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisor",
			Name:      "calls_total",
			Help:      "AI advisory calls by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}
