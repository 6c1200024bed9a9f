package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_AppliesCLIOverrides(t *testing.T) {
	dir := t.TempDir()

	specPath := filepath.Join(dir, "vss.json")
	if err := os.WriteFile(specPath, []byte(`{"Vehicle":{"type":"branch","uuid":"root","children":{}}}`), 0o600); err != nil {
		t.Fatalf("write vss spec: %v", err)
	}

	configBody, err := json.Marshal(map[string]any{
		"platform": map[string]any{"org": "acme", "id": "broker-1"},
		"gateway":  map[string]any{"listen_addr": ":0"},
		"signals":  map[string]any{"spec_path": "unused.json"},
		"auth":     map[string]any{"public_key_path": ""},
	})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, configBody, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cliCfg := &CLIConfig{
		ConfigPath:  configPath,
		VSSSpecPath: specPath,
		LogLevel:    "debug",
		LogFormat:   "text",
		HealthPort:  0,
	}

	// auth.public_key_path is required by Validate; set it directly since the
	// broker has no CLI flag for it (it comes from the config file only).
	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	doc["auth"] = map[string]any{"public_key_path": writeDummyKeyFile(t, dir)}
	raw, err = json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, raw, 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Signals.SpecPath != specPath {
		t.Errorf("SpecPath = %q, want %q", cfg.Signals.SpecPath, specPath)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
		t.Errorf("LogLevel/LogFormat = %q/%q, want debug/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.HealthPort != 0 {
		t.Errorf("HealthPort = %d, want 0 (disabled)", cfg.HealthPort)
	}
}

func writeDummyKeyFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pub.pem")
	// Validate only checks that auth.public_key_path is non-empty; it does
	// not require the file to exist or parse until the server itself loads it.
	if err := os.WriteFile(path, []byte("placeholder"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	return path
}
