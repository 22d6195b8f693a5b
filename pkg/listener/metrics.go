package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus metrics for a listener.
type metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	requestsTotal     *prometheus.CounterVec
	unhandledTotal    prometheus.Counter
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
}

// newMetrics registers the listener metrics with the given registry.
func newMetrics(namespace string, registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)

	return &metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open BLIP connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of BLIP connections accepted",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Inbound BLIP requests dispatched, by profile",
		}, []string{"profile"}),
		unhandledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_unhandled_total",
			Help:      "Inbound BLIP requests with no registered handler",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to BLIP transports",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from BLIP transports",
		}),
	}
}
