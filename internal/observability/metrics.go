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
			Namespace: "shogunctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shogunctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	rpcCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shogunctl",
			Subsystem: "rpc",
			Name:      "commands_total",
			Help:      "Terminal commands issued, by command and result code.",
		},
		[]string{"command", "code"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shogunctl",
			Subsystem: "rpc",
			Name:      "command_duration_seconds",
			Help:      "Terminal command round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	rpcFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shogunctl",
			Subsystem: "rpc",
			Name:      "failures_total",
			Help:      "Fatal connection failures by kind.",
		},
		[]string{"kind"},
	)
	monitorReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shogunctl",
			Subsystem: "monitor",
			Name:      "reconnects_total",
			Help:      "Connect attempts made after a failure.",
		},
	)
	monitorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shogunctl",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Monitor events published, by kind.",
		},
		[]string{"kind"},
	)
	monitorConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shogunctl",
			Subsystem: "monitor",
			Name:      "connected",
			Help:      "1 while the terminal connection is up.",
		},
	)
	oscMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shogunctl",
			Subsystem: "osc",
			Name:      "messages_total",
			Help:      "Inbound OSC messages by address and outcome.",
		},
		[]string{"address", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			rpcCommands,
			rpcDuration,
			rpcFailures,
			monitorReconnects,
			monitorEvents,
			monitorConnected,
			oscMessages,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCommand counts one terminal command round trip. Code is the result
// code string, or an error class such as "timeout".
func RecordCommand(command, code string, duration time.Duration) {
	RegisterMetrics()
	rpcCommands.WithLabelValues(command, code).Inc()
	rpcDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordConnectionFailure(kind string) {
	RegisterMetrics()
	rpcFailures.WithLabelValues(kind).Inc()
}

func RecordReconnect() {
	RegisterMetrics()
	monitorReconnects.Inc()
}

func RecordMonitorEvent(kind string) {
	RegisterMetrics()
	monitorEvents.WithLabelValues(kind).Inc()
}

func SetConnected(up bool) {
	RegisterMetrics()
	if up {
		monitorConnected.Set(1)
		return
	}
	monitorConnected.Set(0)
}

func RecordOSCMessage(address, outcome string) {
	RegisterMetrics()
	oscMessages.WithLabelValues(address, outcome).Inc()
}
