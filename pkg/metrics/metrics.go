// Package metrics exposes the library's Prometheus collectors. They are
// registered on the default registry; serve them with promhttp in the
// embedding process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avbridge_active_sessions",
		Help: "Number of sessions between init and release.",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "avbridge_sessions_total",
		Help: "Completed sessions by outcome.",
	}, []string{"outcome"})

	BytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avbridge_input_bytes_total",
		Help: "Bytes delivered to engines through the input read callback.",
	})

	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avbridge_output_bytes_total",
		Help: "Bytes accepted from engines through the output write callback.",
	})

	DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avbridge_capture_datagrams_total",
		Help: "Datagrams received by live capture readers.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avbridge_capture_queue_depth",
		Help: "Packets buffered between a capture reader and its consumer.",
	})
)
