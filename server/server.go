// Package server wires the signal tree, authorization, subscription engine,
// command processor, and WebSocket gateway into one explicitly constructed
// value. There is no package-level mutable state anywhere in the broker:
// every lock lives inside the component that needs it (the tree's
// sync.RWMutex inside signaltree.Store, the subscription index's mutex
// inside subscription.Index, the connection registry's mutex inside
// gateway/websocket.Gateway), and Server itself holds only the already-built
// components, not a fourth lock of its own.
package server

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/c360/vssbroker/auth"
	"github.com/c360/vssbroker/command"
	"github.com/c360/vssbroker/component"
	"github.com/c360/vssbroker/config"
	"github.com/c360/vssbroker/errors"
	gatewaywebsocket "github.com/c360/vssbroker/gateway/websocket"
	"github.com/c360/vssbroker/health"
	"github.com/c360/vssbroker/metric"
	"github.com/c360/vssbroker/natsclient"
	"github.com/c360/vssbroker/signaltree"
	"github.com/c360/vssbroker/subscription"
)

const (
	healthComponentGateway = "gateway"
	healthComponentNATS    = "permission-manager"
)

// Server is the broker's top-level, explicitly lifecycled value. Tests and
// cmd/vssbroker both build one the same way: New, then Start, then Stop.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	store         *signaltree.Store
	keys          *auth.KeyStore
	verifier      *auth.Verifier
	authenticator *auth.Authenticator
	nats          *natsclient.Client
	exchange      *auth.ExchangeClient
	subs          *subscription.Engine
	processor     *command.Processor
	gateway       *gatewaywebsocket.Gateway

	health          *health.Monitor
	metricsRegistry *metric.MetricsRegistry
	metricsServer   *metric.Server

	healthInterval time.Duration
	stopHealth     context.CancelFunc
}

// New constructs every component from cfg but does not start any of them.
// logger may be nil, in which case components fall back to slog.Default().
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.SchemaError("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		health:         health.NewMonitor(),
		healthInterval: 10 * time.Second,
	}

	s.metricsRegistry = metric.NewMetricsRegistry()

	if err := s.buildAuth(); err != nil {
		return nil, err
	}
	if err := s.buildNATS(); err != nil {
		return nil, err
	}
	if err := s.buildGatewayAndSubscriptions(cfg); err != nil {
		return nil, err
	}
	if err := s.buildTree(cfg.Signals.SpecPath); err != nil {
		return nil, err
	}

	s.processor = command.NewProcessor(s.store, s.authenticator, s.exchange, s.subs)
	s.gateway.AttachProcessor(s.processor)

	if cfg.HealthPort > 0 {
		s.metricsServer = metric.NewServer(cfg.HealthPort, "/metrics", s.metricsRegistry, cfg.Security)
	}

	return s, nil
}

func (s *Server) buildAuth() error {
	var initial *rsa.PublicKey
	if path := s.cfg.Auth.PublicKeyPath; path != "" {
		pub, err := loadRSAPublicKeyFile(path)
		if err != nil {
			return errors.UpstreamUnavailable("load initial public key", err)
		}
		initial = pub
	}
	s.keys = auth.NewKeyStore(initial)

	verifier, err := auth.NewVerifier(context.Background(), s.keys, s.cfg.Auth.ClaimsTTL)
	if err != nil {
		return errors.GenericError(err)
	}
	s.verifier = verifier
	s.authenticator = auth.NewAuthenticator(verifier)
	return nil
}

func (s *Server) buildNATS() error {
	if len(s.cfg.NATS.URLs) == 0 {
		// kuksa-authorize stays unconfigured; Processor.handleKuksaAuthorize
		// reports UpstreamUnavailable for every request.
		return nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithMetrics(s.metricsRegistry),
	}
	if s.cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(s.cfg.NATS.MaxReconnects))
	}
	if s.cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(s.cfg.NATS.ReconnectWait))
	}
	if s.cfg.NATS.Username != "" || s.cfg.NATS.Password != "" {
		opts = append(opts, natsclient.WithCredentials(s.cfg.NATS.Username, s.cfg.NATS.Password))
	}
	if s.cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(s.cfg.NATS.Token))
	}
	if s.cfg.NATS.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(s.cfg.NATS.TLS.CertFile, s.cfg.NATS.TLS.KeyFile, s.cfg.NATS.TLS.CAFile))
	}

	url := s.cfg.NATS.URLs[0]
	nc, err := natsclient.NewClient(url, opts...)
	if err != nil {
		return errors.UpstreamUnavailable("build permission manager NATS client", err)
	}
	s.nats = nc
	s.exchange = auth.NewExchangeClient(nc, s.cfg.NATS.AuthorizeSubject, s.cfg.NATS.RequestTimeout)
	return nil
}

func (s *Server) buildTree(specPath string) error {
	if specPath == "" {
		return errors.SchemaError("signals.spec_path must be set")
	}
	data, err := os.ReadFile(specPath)
	if err != nil {
		return errors.UpstreamUnavailable("read VSS spec file", err)
	}

	s.store = signaltree.New(s.subs.Publish)
	if err := s.store.Load(data); err != nil {
		return err
	}
	return nil
}

func (s *Server) buildGatewayAndSubscriptions(cfg *config.Config) error {
	deps := component.Dependencies{
		MetricsRegistry: s.metricsRegistry,
		Logger:          s.logger,
		Platform:        component.PlatformMeta{Org: cfg.Platform.Org, Platform: cfg.Platform.ID},
		Security:        cfg.Security,
	}

	gwCfg := gatewaywebsocket.DefaultConfig()
	if cfg.Gateway.ListenAddr != "" {
		if _, port, err := parseListenPort(cfg.Gateway.ListenAddr); err == nil {
			gwCfg.Port = port
		}
	}
	if cfg.Gateway.ReadTimeout > 0 {
		gwCfg.ReadTimeout = cfg.Gateway.ReadTimeout
	}
	if cfg.Gateway.WriteTimeout > 0 {
		gwCfg.WriteTimeout = cfg.Gateway.WriteTimeout
	}

	s.gateway = gatewaywebsocket.New(gatewaywebsocket.ConstructorConfig{
		Name:     "vss-websocket-gateway",
		Config:   gwCfg,
		Security: cfg.Security,
	}, deps)

	mask := cfg.Signals.ClientMask
	queueCap := cfg.Signals.QueueCapacity
	subs, err := subscription.NewEngine(mask, queueCap, s.gateway.Send)
	if err != nil {
		return errors.GenericError(err)
	}
	s.subs = subs
	s.gateway.SetDisconnectHook(func(connID uint32) { s.subs.Index.UnsubscribeAll(connID) })

	return nil
}

// Start brings up the subscription engine, the WebSocket gateway, and the
// metrics HTTP server, in that order, and begins periodic health polling.
func (s *Server) Start(ctx context.Context) error {
	if err := s.subs.Start(ctx); err != nil {
		return errors.GenericError(err)
	}

	if err := s.gateway.Initialize(); err != nil {
		return err
	}
	if err := s.gateway.Start(ctx); err != nil {
		return err
	}
	s.health.UpdateHealthy(healthComponentGateway, "accepting connections")

	if s.nats != nil {
		if err := s.nats.Connect(ctx); err != nil {
			s.health.UpdateDegraded(healthComponentNATS, err.Error())
			s.logger.Warn("permission manager NATS connection failed; kuksa-authorize will fail until it recovers", "error", err)
		} else {
			s.health.UpdateHealthy(healthComponentNATS, "connected")
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Start(); err != nil {
			return errors.GenericError(err)
		}
	}

	healthCtx, cancel := context.WithCancel(ctx)
	s.stopHealth = cancel
	go s.pollHealth(healthCtx)

	return nil
}

func (s *Server) pollHealth(ctx context.Context) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.health.Update(healthComponentGateway, health.FromComponentHealth(healthComponentGateway, s.gateway.Health()))
			if s.nats != nil {
				if s.nats.IsHealthy() {
					s.health.UpdateHealthy(healthComponentNATS, "connected")
				} else {
					s.health.UpdateDegraded(healthComponentNATS, "disconnected")
				}
			}
		}
	}
}

// Health returns the aggregated health of every monitored subsystem.
func (s *Server) Health() health.Status {
	return s.health.AggregateHealth("vssbroker")
}

// Stop drains the gateway, the subscription engine, and the metrics server,
// in reverse startup order, within timeout.
func (s *Server) Stop(timeout time.Duration) error {
	if s.stopHealth != nil {
		s.stopHealth()
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.metricsServer != nil {
		record(s.metricsServer.Stop())
	}
	record(s.gateway.Stop(timeout))
	record(s.subs.Stop(timeout))
	if s.nats != nil {
		record(s.nats.Close(context.Background()))
	}

	return firstErr
}

func parseListenPort(addr string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func loadRSAPublicKeyFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s does not contain an RSA public key", path)
	}
	return key, nil
}
