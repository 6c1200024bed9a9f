package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/vssbroker/metric"
)

// requestMetrics tracks outcomes of Request round-trips (the permission-manager
// exchange is the only caller today, but the counters are keyed by subject so
// any future request/reply use shows up separately).
type requestMetrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func newRequestMetrics(registry *metric.MetricsRegistry) (*requestMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "natsclient",
		Name:      "requests_total",
		Help:      "Total NATS request/reply round-trips attempted, by subject.",
	}, []string{"subject"})
	if err := registry.RegisterCounterVec("natsclient", "requests_total", requests); err != nil {
		return nil, err
	}

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "natsclient",
		Name:      "request_failures_total",
		Help:      "Total NATS request/reply round-trips that failed, by subject.",
	}, []string{"subject"})
	if err := registry.RegisterCounterVec("natsclient", "request_failures_total", failures); err != nil {
		return nil, err
	}

	return &requestMetrics{requests: requests, failures: failures}, nil
}
