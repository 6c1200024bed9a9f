// Package config provides configuration loading and thread-safe access for
// the broker.
//
// # Core Components
//
// Config: the broker's configuration — platform identity, NATS connection
// settings for the permission-manager exchange, the WebSocket gateway's
// listen settings, the VSS signal tree path and subscription backpressure
// limits, and the initial RS256 public key used for token verification.
//
// SafeConfig: thread-safe wrapper using RWMutex and deep cloning (via JSON
// marshal round-trip) to prevent concurrent access issues and accidental
// mutations.
//
// Loader: loads configuration with layer merging (base + overrides) and
// environment variable substitution for flexible deployment scenarios.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.json")
//	loader.AddLayer("configs/production.json") // overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	safeCfg := config.NewSafeConfig(cfg)
//	current := safeCfg.Get() // deep copy, safe to read without locks
//
// # Environment Variable Overrides
//
//	export VSSBROKER_PLATFORM_ID="broker-01"
//	export VSSBROKER_NATS_URLS="nats://server1:4222,nats://server2:4222"
//	export VSSBROKER_VSS_SPEC="/etc/vssbroker/vss.json"
//
// # Security
//
//   - File size limits (10MB max) to prevent memory exhaustion
//   - JSON depth validation (100 levels max) to prevent DoS attacks
//   - Path validation to prevent directory traversal
//   - Regular file checks (no directories or device files; symlinks are followed)
package config
