package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not domain-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	CommandsReceived  *prometheus.CounterVec
	CommandsProcessed *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Gateway metrics
	ActiveConnections   prometheus.Gauge
	ActiveSubscriptions prometheus.Gauge

	// NATS metrics (permission-manager exchange)
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		CommandsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vssbroker",
				Subsystem: "commands",
				Name:      "received_total",
				Help:      "Total number of command requests received, by action",
			},
			[]string{"action"},
		),

		CommandsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vssbroker",
				Subsystem: "commands",
				Name:      "processed_total",
				Help:      "Total number of command requests processed, by action and outcome",
			},
			[]string{"action", "status"},
		),

		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vssbroker",
				Subsystem: "commands",
				Name:      "duration_seconds",
				Help:      "Command dispatch duration in seconds, by action",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vssbroker",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors, by error kind",
			},
			[]string{"kind"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "gateway",
				Name:      "active_connections",
				Help:      "Number of currently connected WebSocket clients",
			},
		),

		ActiveSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "subscription",
				Name:      "active_total",
				Help:      "Number of currently active signal subscriptions",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vssbroker",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vssbroker",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordCommandReceived increments the received command counter
func (c *Metrics) RecordCommandReceived(action string) {
	c.CommandsReceived.WithLabelValues(action).Inc()
}

// RecordCommandProcessed increments the processed command counter
func (c *Metrics) RecordCommandProcessed(action, status string) {
	c.CommandsProcessed.WithLabelValues(action, status).Inc()
}

// RecordCommandDuration records command dispatch time
func (c *Metrics) RecordCommandDuration(action string, duration time.Duration) {
	c.CommandDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordError increments the error counter for the given error kind
func (c *Metrics) RecordError(kind string) {
	c.ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// SetActiveConnections updates the active gateway connection gauge
func (c *Metrics) SetActiveConnections(n int) {
	c.ActiveConnections.Set(float64(n))
}

// SetActiveSubscriptions updates the active subscription gauge
func (c *Metrics) SetActiveSubscriptions(n int) {
	c.ActiveSubscriptions.Set(float64(n))
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
