// Package websocket implements the broker's client-facing transport: a
// WebSocket server that accepts vehicle and tooling connections, decodes one
// wire command per inbound frame, hands it to a command.Processor, and
// writes the resulting envelope back on the same connection.
//
// # Overview
//
// Each accepted connection gets its own read goroutine and its own
// auth.Channel, held for the lifetime of the connection. The gateway does
// not interpret command payloads itself; it only manages the socket and the
// per-connection authorization state that command.Processor.Handle mutates
// in place as authorize/kuksa-authorize requests succeed.
//
// The gateway also implements subscription.SendFunc (via Send), so the
// subscription engine can push notification frames to a specific connection
// by ID without knowing anything about WebSocket framing.
//
// # Lifecycle
//
// Gateway implements component.LifecycleComponent: Initialize builds the
// upgrader, Start sets up TLS and begins accepting connections, and
// Stop closes the listener, drains in-flight client goroutines, and closes
// every open connection.
//
// # Connection bookkeeping
//
// Connection IDs are assigned from an atomic counter, never reused, and
// serve as the key for both the auth.Channel registry here and the
// subscription index's own connID-keyed maps. A disconnect hook, set by the
// server that wires the gateway together, lets this package notify the
// subscription engine to drop a connection's subscriptions without
// importing the subscription package's index internals.
package websocket
