package component

import (
	"log/slog"

	"github.com/c360/vssbroker/metric"
	"github.com/c360/vssbroker/natsclient"
	"github.com/c360/vssbroker/pkg/security"
)

// PlatformMeta identifies the deployment this broker instance runs under.
type PlatformMeta struct {
	Org      string `json:"org"`
	Platform string `json:"platform"`
}

// Dependencies provides all external dependencies needed by components.
// This structure follows the same pattern as Dependencies, enabling
// components to receive properly structured dependencies rather than individual fields.
type Dependencies struct {
	NATSClient      *natsclient.Client      // NATS client used for the permission-manager exchange
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	Platform        PlatformMeta            // Platform identity (organization and platform)
	Security        security.Config         // Platform-wide security configuration
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
