package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "codepair"
	metricsSubsystem = "relay"
)

// metrics holds the Prometheus instruments for the relay.
type metrics struct {
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	eventsTotal       *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	fanoutTotal       prometheus.Counter
	dispatchDuration  prometheus.Histogram
	handlerPanics     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_active",
			Help:      "Currently open websocket connections.",
		}),
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rooms_active",
			Help:      "Rooms with at least one participant.",
		}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_total",
			Help:      "Inbound events dispatched, by event name.",
		}, []string{"event"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_dropped_total",
			Help:      "Inbound events dropped before mutation, by reason.",
		}, []string{"reason"}),
		fanoutTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "fanout_messages_total",
			Help:      "Outbound messages queued to sessions.",
		}),
		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in a single event handler.",
			Buckets:   prometheus.DefBuckets,
		}),
		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "handler_panics_total",
			Help:      "Recovered panics in event handlers.",
		}),
	}
}
