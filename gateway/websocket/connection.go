package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/c360/vssbroker/auth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// handleWebSocket upgrades an HTTP request, registers a new connection, and
// starts its read loop in a dedicated goroutine.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.errorCount.Add(1)
		return
	}

	connID := g.nextConn.Add(1)
	cc := &clientConn{
		conn:      conn,
		channel:   &auth.Channel{ConnID: connID},
		connectAt: time.Now(),
		traceID:   uuid.NewString(),
	}
	cc.lastPing.Store(time.Now())

	g.clientsMu.Lock()
	g.clients[connID] = cc
	count := len(g.clients)
	g.clientsMu.Unlock()

	if g.metrics != nil {
		g.metrics.SetActiveConnections(count)
	}
	g.logger.Debug("websocket client connected", "conn_id", connID, "trace_id", cc.traceID)

	g.mu.RLock()
	running := g.running
	g.mu.RUnlock()
	if !running {
		g.closeClient(cc)
		return
	}

	g.wg.Add(1)
	go g.handleClient(context.Background(), connID, cc)
}

// handleClient reads frames from one connection until it errors or the
// gateway shuts down, dispatching each to the attached command.Processor.
func (g *Gateway) handleClient(ctx context.Context, connID uint32, cc *clientConn) {
	defer g.wg.Done()
	defer g.closeClient(cc)

	if g.cfg.MaxMessageBytes > 0 {
		cc.conn.SetReadLimit(g.cfg.MaxMessageBytes)
	}
	cc.conn.SetPongHandler(func(string) error {
		cc.lastPing.Store(time.Now())
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.shutdown:
			return
		default:
		}

		if g.cfg.ReadTimeout > 0 {
			_ = cc.conn.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))
		}

		_, data, err := cc.conn.ReadMessage()
		if err != nil {
			return
		}

		proc := g.processor.Load()
		if proc == nil {
			continue
		}

		reply := proc.Handle(ctx, cc.channel, data)
		g.recordCommand()
		if err := g.writeToConn(cc, reply); err != nil {
			return
		}
	}
}

// Send implements subscription.SendFunc: it writes payload to the
// connection identified by connID, if that connection is still open.
func (g *Gateway) Send(connID uint32, payload []byte) error {
	g.clientsMu.RLock()
	cc, ok := g.clients[connID]
	g.clientsMu.RUnlock()
	if !ok || cc.closed.Load() {
		return nil
	}
	return g.writeToConn(cc, payload)
}

func (g *Gateway) writeToConn(cc *clientConn, payload []byte) error {
	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()

	if g.cfg.WriteTimeout > 0 {
		_ = cc.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	}
	err := cc.conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		return err
	}
	g.bytesSent.Add(int64(len(payload)))
	return nil
}

func (g *Gateway) recordCommand() {
	g.commandsHandled.Add(1)
	g.lastActivityMu.Lock()
	g.lastActivity = time.Now()
	g.lastActivityMu.Unlock()
}

// closeClient removes cc from the registry, notifies the disconnect hook,
// and closes its socket. Safe to call more than once for the same cc.
func (g *Gateway) closeClient(cc *clientConn) {
	cc.closeOnce.Do(func() {
		cc.closed.Store(true)

		var connID uint32
		if cc.channel != nil {
			connID = cc.channel.ConnID
		}

		g.clientsMu.Lock()
		delete(g.clients, connID)
		count := len(g.clients)
		g.clientsMu.Unlock()

		if g.metrics != nil {
			g.metrics.SetActiveConnections(count)
		}
		g.logger.Debug("websocket client disconnected", "conn_id", connID, "trace_id", cc.traceID)
		if g.onClose != nil {
			g.onClose(connID)
		}
		_ = cc.conn.Close()
	})
}

// pingClients periodically pings every open connection and drops any that
// have not answered a ping for three consecutive intervals.
func (g *Gateway) pingClients(ctx context.Context) {
	defer g.wg.Done()

	if g.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	staleAfter := g.cfg.PingInterval * 3
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.shutdown:
			return
		case <-ticker.C:
			g.pingOnce(staleAfter)
		}
	}
}

func (g *Gateway) pingOnce(staleAfter time.Duration) {
	g.clientsMu.RLock()
	clients := make([]*clientConn, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.clientsMu.RUnlock()

	now := time.Now()
	for _, cc := range clients {
		if last, ok := cc.lastPing.Load().(time.Time); ok && now.Sub(last) > staleAfter {
			g.closeClient(cc)
			continue
		}

		cc.writeMu.Lock()
		_ = cc.conn.SetWriteDeadline(now.Add(g.cfg.WriteTimeout))
		err := cc.conn.WriteMessage(websocket.PingMessage, nil)
		cc.writeMu.Unlock()
		if err != nil {
			g.closeClient(cc)
		}
	}
}
