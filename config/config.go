package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/c360/vssbroker/pkg/security"
)

// Config represents the complete broker configuration: platform identity,
// transport security, the NATS connection used for the permission-manager
// exchange, and the gateway/signal/auth settings specific to this broker.
type Config struct {
	Version  string          `json:"version"` // Semantic version (e.g., "1.0.0")
	Platform PlatformConfig  `json:"platform"`
	Security security.Config `json:"security,omitempty"`
	NATS     NATSConfig      `json:"nats"`
	Gateway  GatewayConfig   `json:"gateway"`
	Signals  SignalsConfig   `json:"signals"`
	Auth     AuthConfig      `json:"auth"`

	LogLevel   string `json:"log_level,omitempty"`  // slog level: debug, info, warn, error
	LogFormat  string `json:"log_format,omitempty"` // slog handler: json, text
	HealthPort int    `json:"health_port,omitempty"`
}

// PlatformConfig defines platform identity
type PlatformConfig struct {
	Org         string `json:"org"`                   // Organization namespace, also the NATS subject root
	ID          string `json:"id"`                    // Platform/broker instance identifier
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig defines the NATS connection used for the kuksa-authorize
// permission-manager round-trip.
type NATSConfig struct {
	URLs             []string      `json:"urls,omitempty"`
	MaxReconnects    int           `json:"max_reconnects,omitempty"`
	ReconnectWait    time.Duration `json:"reconnect_wait,omitempty"`
	Username         string        `json:"username,omitempty"`
	Password         string        `json:"password,omitempty"`
	Token            string        `json:"token,omitempty"`
	TLS              NATSTLSConfig `json:"tls,omitempty"`
	AuthorizeSubject string        `json:"authorize_subject,omitempty"` // default "vss.authz.exchange"
	RequestTimeout   time.Duration `json:"request_timeout,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// GatewayConfig defines the WebSocket command gateway's listen settings
type GatewayConfig struct {
	ListenAddr   string        `json:"listen_addr"`
	MaxConns     int           `json:"max_conns,omitempty"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty"`
}

// SignalsConfig defines the VSS signal tree and subscription settings
type SignalsConfig struct {
	SpecPath      string `json:"spec_path"`               // path to the VSS JSON document
	ClientMask    uint32 `json:"client_mask,omitempty"`   // sub-id packing divisor, default 1_000_000
	QueueCapacity int    `json:"queue_capacity,omitempty"` // per-connection backpressure buffer size, default 10000
}

// AuthConfig defines JWT verification settings for the authorize command
type AuthConfig struct {
	PublicKeyPath string        `json:"public_key_path"` // initial RS256 public key, replaceable via kuksa-authorize
	ClaimsTTL     time.Duration `json:"claims_ttl,omitempty"`
}

const (
	defaultClientMask    = 1_000_000
	defaultQueueCapacity = 10_000
)

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid, normalizing fields and applying
// field-level defaults along the way.
func (c *Config) Validate() error {
	if c.Platform.Org == "" {
		return errors.New("platform.org is required")
	}

	c.Platform.Org = strings.ToLower(c.Platform.Org)

	if !isValidNATSSubjectPart(c.Platform.Org) {
		return fmt.Errorf(
			"platform.org '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Platform.Org,
		)
	}

	if c.Platform.ID == "" {
		return errors.New("platform.id is required")
	}

	if c.Gateway.ListenAddr == "" {
		return errors.New("gateway.listen_addr is required")
	}

	if c.Signals.SpecPath == "" {
		return errors.New("signals.spec_path is required")
	}
	if c.Signals.ClientMask == 0 {
		c.Signals.ClientMask = defaultClientMask
	}
	if c.Signals.QueueCapacity == 0 {
		c.Signals.QueueCapacity = defaultQueueCapacity
	}

	if c.Auth.PublicKeyPath == "" {
		return errors.New("auth.public_key_path is required")
	}

	if c.NATS.AuthorizeSubject == "" {
		c.NATS.AuthorizeSubject = "vss.authz.exchange"
	}
	if c.NATS.RequestTimeout == 0 {
		c.NATS.RequestTimeout = 5 * time.Second
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security configuration: %w", err)
	}

	return nil
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// validateSecurity validates the security configuration
func (c *Config) validateSecurity() error {
	if c.Security.TLS.Server.Enabled {
		if c.Security.TLS.Server.CertFile == "" {
			return errors.New("tls.server.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.Server.KeyFile == "" {
			return errors.New("tls.server.key_file is required when TLS is enabled")
		}

		if _, err := os.Stat(c.Security.TLS.Server.CertFile); err != nil {
			return fmt.Errorf("tls.server.cert_file: %w", err)
		}

		if _, err := os.Stat(c.Security.TLS.Server.KeyFile); err != nil {
			return fmt.Errorf("tls.server.key_file: %w", err)
		}

		if c.Security.TLS.Server.MinVersion != "" {
			if err := validateTLSVersion(c.Security.TLS.Server.MinVersion); err != nil {
				return fmt.Errorf("tls.server.min_version: %w", err)
			}
		}
	}

	for i, caFile := range c.Security.TLS.Client.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return fmt.Errorf("tls.client.ca_files[%d]: %w", i, err)
		}
	}

	if c.Security.TLS.Client.InsecureSkipVerify {
		_, _ = fmt.Fprintf(
			os.Stderr,
			"WARNING: TLS certificate verification is disabled (insecure_skip_verify=true). This should only be used in development/testing!\n",
		)
	}

	if c.Security.TLS.Client.MinVersion != "" {
		if err := validateTLSVersion(c.Security.TLS.Client.MinVersion); err != nil {
			return fmt.Errorf("tls.client.min_version: %w", err)
		}
	}

	return nil
}

// validateTLSVersion checks if a TLS version string is valid
func validateTLSVersion(version string) error {
	switch version {
	case "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", version)
	}
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "VSSBROKER",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := l.getDefaults()

	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		NATS: NATSConfig{
			URLs:             []string{"nats://localhost:4222"},
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			AuthorizeSubject: "vss.authz.exchange",
			RequestTimeout:   5 * time.Second,
		},
		Gateway: GatewayConfig{
			ListenAddr:   ":8080",
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
		Signals: SignalsConfig{
			SpecPath:      "configs/vss.json",
			ClientMask:    defaultClientMask,
			QueueCapacity: defaultQueueCapacity,
		},
		Auth: AuthConfig{
			ClaimsTTL: 5 * time.Minute,
		},
		LogLevel:   "info",
		LogFormat:  "json",
		HealthPort: 8081,
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if nats, ok := data["nats"].(map[string]any); ok {
		parseDurationField(nats, "reconnect_wait")
		parseDurationField(nats, "request_timeout")
	}
	if gateway, ok := data["gateway"].(map[string]any); ok {
		parseDurationField(gateway, "write_timeout")
		parseDurationField(gateway, "read_timeout")
	}
	if auth, ok := data["auth"].(map[string]any); ok {
		parseDurationField(auth, "claims_ttl")
	}
}

func parseDurationField(m map[string]any, key string) {
	if raw, ok := m[key].(string); ok {
		if d, err := time.ParseDuration(raw); err == nil {
			m[key] = d.Nanoseconds()
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_PLATFORM_ID"); val != "" {
		cfg.Platform.ID = val
	}
	if val := os.Getenv(l.envPrefix + "_PLATFORM_ORG"); val != "" {
		cfg.Platform.Org = val
	}

	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}

	if val := os.Getenv(l.envPrefix + "_VSS_SPEC"); val != "" {
		cfg.Signals.SpecPath = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.LogFormat = val
	}
	if val := os.Getenv(l.envPrefix + "_HEALTH_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.HealthPort = port
		}
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return safeWriteFile(path, data)
}

// GetOrg returns the organization from platform config
func (c *Config) GetOrg() string {
	return c.Platform.Org
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// UnmarshalJSON implements custom JSON unmarshaling for Config, converting
// duration fields that may arrive as either Go duration strings or raw
// nanosecond numbers (as produced by parseDurations above).
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		NATS struct {
			URLs             []string      `json:"urls"`
			MaxReconnects    int           `json:"max_reconnects"`
			ReconnectWait    any           `json:"reconnect_wait"`
			RequestTimeout   any           `json:"request_timeout"`
			Username         string        `json:"username,omitempty"`
			Password         string        `json:"password,omitempty"`
			Token            string        `json:"token,omitempty"`
			TLS              NATSTLSConfig `json:"tls,omitempty"`
			AuthorizeSubject string        `json:"authorize_subject,omitempty"`
		} `json:"nats"`
		Gateway struct {
			ListenAddr   string `json:"listen_addr"`
			MaxConns     int    `json:"max_conns,omitempty"`
			WriteTimeout any    `json:"write_timeout,omitempty"`
			ReadTimeout  any    `json:"read_timeout,omitempty"`
		} `json:"gateway"`
		Auth struct {
			PublicKeyPath string `json:"public_key_path"`
			ClaimsTTL     any    `json:"claims_ttl,omitempty"`
		} `json:"auth"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.NATS.URLs = aux.NATS.URLs
	c.NATS.MaxReconnects = aux.NATS.MaxReconnects
	c.NATS.Username = aux.NATS.Username
	c.NATS.Password = aux.NATS.Password
	c.NATS.Token = aux.NATS.Token
	c.NATS.TLS = aux.NATS.TLS
	c.NATS.AuthorizeSubject = aux.NATS.AuthorizeSubject

	c.Gateway.ListenAddr = aux.Gateway.ListenAddr
	c.Gateway.MaxConns = aux.Gateway.MaxConns

	c.Auth.PublicKeyPath = aux.Auth.PublicKeyPath

	var err error
	if c.NATS.ReconnectWait, err = parseAnyDuration(aux.NATS.ReconnectWait); err != nil {
		return fmt.Errorf("nats.reconnect_wait: %w", err)
	}
	if c.NATS.RequestTimeout, err = parseAnyDuration(aux.NATS.RequestTimeout); err != nil {
		return fmt.Errorf("nats.request_timeout: %w", err)
	}
	if c.Gateway.WriteTimeout, err = parseAnyDuration(aux.Gateway.WriteTimeout); err != nil {
		return fmt.Errorf("gateway.write_timeout: %w", err)
	}
	if c.Gateway.ReadTimeout, err = parseAnyDuration(aux.Gateway.ReadTimeout); err != nil {
		return fmt.Errorf("gateway.read_timeout: %w", err)
	}
	if c.Auth.ClaimsTTL, err = parseAnyDuration(aux.Auth.ClaimsTTL); err != nil {
		return fmt.Errorf("auth.claims_ttl: %w", err)
	}

	return nil
}

// parseAnyDuration accepts a duration string, a raw nanosecond number, or nil.
func parseAnyDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		return time.ParseDuration(t)
	case float64:
		return time.Duration(t), nil
	default:
		return 0, fmt.Errorf("unsupported duration value type %T", v)
	}
}
