// Package component defines the self-describing unit contract used by the
// broker's managed parts (today, the WebSocket gateway) and the supporting
// lifecycle, schema, and validation helpers around it.
//
// # Overview
//
// A component is a self-describing unit that can be introspected at runtime
// for metadata, configuration schema, and health/flow metrics, and — if it
// supports it — driven through an explicit Initialize/Start/Stop lifecycle.
// The broker has a single fixed topology (gateway → command processor →
// signal tree / auth / subscriptions), so there is no dynamic registry of
// interchangeable component factories here; Dependencies is still used to
// hand each part its NATS client, metrics registry, logger, and platform
// identity without parameter proliferation.
//
// # Discoverable Interface
//
// Every managed part implements Discoverable:
//
//	type Discoverable interface {
//		Meta() Metadata             // Component metadata (name, type, version)
//		ConfigSchema() ConfigSchema // Configuration schema for validation
//		Health() HealthStatus       // Current health status
//		DataFlow() FlowMetrics      // Data flow metrics (updates, bytes, errors)
//	}
//
// This enables runtime introspection, dynamic configuration validation, and
// health/metrics reporting without a component needing to know about its
// caller.
//
// # Lifecycle
//
// Components that need an explicit start/stop sequence additionally
// implement LifecycleComponent:
//
//	type LifecycleComponent interface {
//		Discoverable
//		Initialize() error
//		Start(ctx context.Context) error
//		Stop(timeout time.Duration) error
//	}
//
// cmd/vssbroker wires the gateway this way: Initialize() opens the listener
// configuration, Start(ctx) begins accepting connections (ctx cancellation
// triggers shutdown), and Stop(timeout) drains in-flight connections before
// the deadline.
//
// # Configuration Schema
//
// Components define their configuration through ConfigSchema, either by
// hand or by tagging a Config struct with `schema:"..."` directives and
// calling GenerateConfigSchema once at init time:
//
//	type GatewayConfig struct {
//		ListenAddr string `json:"listen_addr" schema:"type:string,description:WebSocket listen address,category:basic"`
//		MaxConns   int    `json:"max_conns"   schema:"type:int,description:Maximum concurrent connections,min:1,category:advanced"`
//	}
//
//	var gatewaySchema = component.GenerateConfigSchema(reflect.TypeOf(GatewayConfig{}))
//
// Property Types:
//   - "string": Text input, optional pattern validation
//   - "int": Number input with min/max constraints
//   - "bool": Checkbox input
//   - "float": Number input allowing decimals
//   - "enum": Dropdown select with predefined values
//   - "cache": pkg/cache.Config fields, with generated CacheFields metadata
//   - "object", "array": Complex/list configuration (JSON editor fallback)
//
// Configurations are validated against their ConfigSchema before use:
//
//	errs := component.ValidateConfig(config, schema)
//	if len(errs) > 0 {
//		// errs[i].Field / .Message / .Code describe each violation
//	}
//
// Property Categorization:
//   - "basic": Common settings surfaced by default
//   - "advanced": Less common settings, grouped separately
//   - Empty/unset: Defaults to "advanced"
//
// # Dependencies
//
// Dependencies are injected through a structured object rather than
// individual parameters:
//
//	type Dependencies struct {
//		NATSClient      *natsclient.Client      // Permission-manager RPC transport
//		MetricsRegistry *metric.MetricsRegistry // Optional: Prometheus metrics
//		Logger          *slog.Logger            // Optional: defaults to slog.Default()
//		Platform        PlatformMeta            // Platform identity (org, platform)
//		Security        security.Config         // Platform-wide TLS/security config
//	}
//
// # Testing
//
// lifecycle_test_suite.go provides StandardLifecycleTests(t, factory) — a
// reusable conformance suite any LifecycleComponent implementation can run
// against to verify correct state transitions, concurrent start/stop safety,
// and clean resource teardown.
package component
