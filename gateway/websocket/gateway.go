// Package websocket implements the broker's client-facing transport; see doc.go.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/vssbroker/auth"
	"github.com/c360/vssbroker/command"
	"github.com/c360/vssbroker/component"
	"github.com/c360/vssbroker/errors"
	"github.com/c360/vssbroker/metric"
	"github.com/c360/vssbroker/pkg/security"
	"github.com/c360/vssbroker/pkg/tlsutil"
	"github.com/gorilla/websocket"
)

// clientConn tracks one accepted connection: its socket, its authorization
// state, and the bookkeeping needed to close it exactly once.
type clientConn struct {
	conn      *websocket.Conn
	channel   *auth.Channel
	connectAt time.Time
	traceID   string // correlates this connection's log lines, independent of its numeric connID
	lastPing  atomic.Value // time.Time
	closed    atomic.Bool
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Gateway is a WebSocket server implementing component.LifecycleComponent.
// It owns the listener, the connID->clientConn registry, and dispatches
// every inbound frame to an attached command.Processor.
type Gateway struct {
	name     string
	cfg      Config
	security security.Config

	processor atomic.Pointer[command.Processor]
	onClose   func(connID uint32)
	logger    *slog.Logger
	metrics   *metric.Metrics

	server   *http.Server
	upgrader websocket.Upgrader

	clients   map[uint32]*clientConn
	clientsMu sync.RWMutex
	nextConn  atomic.Uint32

	mu            sync.RWMutex
	lifecycleMu   sync.Mutex
	running       bool
	startTime     time.Time
	shutdown      chan struct{}
	wg            *sync.WaitGroup
	tlsCleanup    func()
	tlsCleanupMu  sync.Mutex
	lifecycleCtx  context.Context
	lifecycleStop context.CancelFunc

	commandsHandled atomic.Int64
	bytesSent       atomic.Int64
	errorCount      atomic.Int64
	lastActivityMu  sync.Mutex
	lastActivity    time.Time
}

var _ component.Discoverable = (*Gateway)(nil)
var _ component.LifecycleComponent = (*Gateway)(nil)

// New builds a Gateway. It is safe to construct before a command.Processor
// exists; attach one with AttachProcessor before calling Start.
func New(cc ConstructorConfig, deps component.Dependencies) *Gateway {
	name := cc.Name
	if name == "" {
		name = "vss-websocket-gateway"
	}

	g := &Gateway{
		name:     name,
		cfg:      cc.Config,
		security: cc.Security,
		logger:   deps.GetLoggerWithComponent(name),
		clients:  make(map[uint32]*clientConn),
	}
	if deps.MetricsRegistry != nil {
		g.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return g
}

// AttachProcessor wires the command dispatcher. Called once during server
// startup, after the processor's own dependencies (store, auth, subscription
// engine) have been constructed using this gateway's Send method.
func (g *Gateway) AttachProcessor(p *command.Processor) {
	g.processor.Store(p)
}

// SetDisconnectHook installs a callback invoked with a connection's ID when
// it closes, so the subscription index can drop its subscriptions. Safe to
// call only before Start.
func (g *Gateway) SetDisconnectHook(fn func(connID uint32)) {
	g.onClose = fn
}

// Meta implements component.Discoverable.
func (g *Gateway) Meta() component.Metadata {
	return component.Metadata{
		Name:        g.name,
		Type:        "gateway",
		Description: "WebSocket server accepting vehicle signal client connections",
		Version:     "1.0.0",
	}
}

// ConfigSchema implements component.Discoverable.
func (g *Gateway) ConfigSchema() component.ConfigSchema {
	return websocketSchema
}

// Health implements component.Discoverable.
func (g *Gateway) Health() component.HealthStatus {
	g.mu.RLock()
	running := g.running
	start := g.startTime
	g.mu.RUnlock()

	var uptime time.Duration
	if running {
		uptime = time.Since(start)
	}
	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(g.errorCount.Load()),
		Uptime:     uptime,
	}
}

// DataFlow implements component.Discoverable.
func (g *Gateway) DataFlow() component.FlowMetrics {
	g.mu.RLock()
	start := g.startTime
	running := g.running
	g.mu.RUnlock()

	var updatesPerSecond, bytesPerSecond float64
	if running {
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			updatesPerSecond = float64(g.commandsHandled.Load()) / elapsed
			bytesPerSecond = float64(g.bytesSent.Load()) / elapsed
		}
	}

	g.lastActivityMu.Lock()
	last := g.lastActivity
	g.lastActivityMu.Unlock()

	return component.FlowMetrics{
		UpdatesPerSecond: updatesPerSecond,
		BytesPerSecond:   bytesPerSecond,
		LastActivity:     last,
	}
}

// Initialize implements component.LifecycleComponent.
func (g *Gateway) Initialize() error {
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  g.cfg.ReadBufferSize,
		WriteBufferSize: g.cfg.WriteBufferSize,
		CheckOrigin: func(_ *http.Request) bool {
			return true
		},
		EnableCompression: g.cfg.EnableCompression,
	}
	return nil
}

// Start implements component.LifecycleComponent.
func (g *Gateway) Start(ctx context.Context) error {
	g.lifecycleMu.Lock()
	defer g.lifecycleMu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil
	}

	if ctx == nil {
		return errors.SchemaError("start context must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return errors.UpstreamUnavailable("start context already done", err)
	}

	g.lifecycleCtx, g.lifecycleStop = context.WithCancel(context.Background())
	g.shutdown = make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc(g.cfg.Path, g.handleWebSocket)
	g.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", g.cfg.Port),
		Handler: mux,
	}

	if err := g.setupTLS(); err != nil {
		g.server = nil
		g.lifecycleStop()
		return err
	}

	g.running = true
	g.startTime = time.Now()

	g.wg = &sync.WaitGroup{}
	g.wg.Add(2)
	go g.runServer()
	go g.pingClients(ctx)

	return nil
}

func (g *Gateway) setupTLS() error {
	if !g.security.TLS.Server.Enabled {
		return nil
	}

	mode := g.security.TLS.Server.Mode
	if mode == "" {
		mode = "manual"
	}

	if mode == "acme" && g.security.TLS.Server.ACME.Enabled {
		tlsConfig, cleanup, err := tlsutil.LoadServerTLSConfigWithACME(g.lifecycleCtx, g.security.TLS.Server)
		if err != nil {
			return errors.UpstreamUnavailable("load ACME TLS config", err)
		}
		g.server.TLSConfig = tlsConfig
		g.tlsCleanupMu.Lock()
		g.tlsCleanup = cleanup
		g.tlsCleanupMu.Unlock()
		return nil
	}

	tlsConfig, err := tlsutil.LoadServerTLSConfigWithMTLS(g.security.TLS.Server, g.security.TLS.Server.MTLS)
	if err != nil {
		return errors.UpstreamUnavailable("load TLS config", err)
	}
	g.server.TLSConfig = tlsConfig
	return nil
}

func (g *Gateway) runServer() {
	defer g.wg.Done()

	g.mu.RLock()
	server := g.server
	tlsEnabled := g.security.TLS.Server.Enabled
	g.mu.RUnlock()
	if server == nil {
		return
	}

	var err error
	if tlsEnabled {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		g.errorCount.Add(1)
		g.logger.Error("websocket listener stopped", "error", err)
	}
}

// Stop implements component.LifecycleComponent.
func (g *Gateway) Stop(timeout time.Duration) error {
	g.lifecycleMu.Lock()
	defer g.lifecycleMu.Unlock()

	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	close(g.shutdown)
	server := g.server
	wg := g.wg
	g.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("websocket server shutdown error", "error", err)
		}
	}

	if wg != nil {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			g.logger.Warn("websocket goroutines did not exit within timeout")
		}
	}

	g.tlsCleanupMu.Lock()
	if g.tlsCleanup != nil {
		g.tlsCleanup()
		g.tlsCleanup = nil
	}
	g.tlsCleanupMu.Unlock()
	if g.lifecycleStop != nil {
		g.lifecycleStop()
	}

	g.closeAllClients()

	g.mu.Lock()
	g.server = nil
	g.shutdown = nil
	g.wg = nil
	g.mu.Unlock()

	return nil
}

func (g *Gateway) closeAllClients() {
	g.clientsMu.Lock()
	clients := make([]*clientConn, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.clientsMu.Unlock()

	for _, c := range clients {
		g.closeClient(c)
	}
}
