package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amqpwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "route", "status"},
	)
	writerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "writer",
			Name:      "requests_total",
			Help:      "Write requests rendered onto the socket.",
		},
		[]string{"kind"},
	)
	writerBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "writer",
			Name:      "bytes_total",
			Help:      "Bytes written onto the socket.",
		},
		[]string{"kind"},
	)
	writerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "writer",
			Name:      "failures_total",
			Help:      "Socket write failures that faulted a connection.",
		},
	)
	writerDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "writer",
			Name:      "dropped_total",
			Help:      "Queued write requests discarded after a fault.",
		},
	)
	queueRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "queue",
			Name:      "rejected_total",
			Help:      "Enqueue attempts rejected by the write queue.",
		},
		[]string{"reason"},
	)
	clientRecoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "client",
			Name:      "recoveries_total",
			Help:      "Connection recovery attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			writerRequests, writerBytes, writerFailures, writerDropped,
			queueRejected, clientRecoveries,
		)
	})
}

func RecordHTTPRequest(node, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, route, statusLabel).Observe(duration.Seconds())
}

// RecordWrite counts one rendered request of the given kind.
func RecordWrite(kind string, n int) {
	RegisterMetrics()
	writerRequests.WithLabelValues(kind).Inc()
	writerBytes.WithLabelValues(kind).Add(float64(n))
}

// RecordWriteFailure counts a faulted connection and the requests it dropped.
func RecordWriteFailure(dropped int) {
	RegisterMetrics()
	writerFailures.Inc()
	if dropped > 0 {
		writerDropped.Add(float64(dropped))
	}
}

func RecordQueueRejected(reason string) {
	RegisterMetrics()
	queueRejected.WithLabelValues(reason).Inc()
}

func RecordRecovery(outcome string) {
	RegisterMetrics()
	clientRecoveries.WithLabelValues(outcome).Inc()
}
