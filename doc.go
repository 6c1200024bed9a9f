// Package semstreams is the root of the vssbroker module, a broker that
// serves a VSS (Vehicle Signal Specification) signal tree to WebSocket
// clients. This package holds no code; the broker is built from its
// sub-packages:
//
//   - cmd/vssbroker: the command-line entry point
//   - server: builds every component from the configuration and runs the
//     New, Start, Stop lifecycle
//   - signaltree: the loaded VSS tree, its values, and type coercion
//   - vsspath: parsing and resolving dotted VSS paths, including a
//     trailing ".*" wildcard
//   - command: the processor that dispatches the JSON commands a client sends
//   - auth: JWT verification, public-key rotation, per-channel permissions,
//     and the permission-manager exchange
//   - subscription: the subscription index and the notification delivery pump
//   - gateway/websocket: the WebSocket gateway and its connection registry
//   - natsclient: a NATS client with a circuit breaker, used to reach the
//     permission manager
//   - config: configuration loading and validation
//   - component, errors, health, metric: shared component, error, health
//     and Prometheus metric support
//   - pkg/acme, pkg/buffer, pkg/cache, pkg/retry, pkg/security,
//     pkg/tlsutil, pkg/worker: utility packages
package semstreams
