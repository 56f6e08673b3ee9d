package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
upstream:
  api_key: test-key
  timeout: 5s
limiter:
  monthly_budget: 110000
scheduler:
  quote_ttl: 30s
symbols:
  - { symbol: BTC, display_name: Bitcoin }
  - { symbol: ETH, display_name: Ethereum }
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "test" {
		t.Fatalf("unexpected environment %q", cfg.Environment)
	}
	if cfg.Upstream.Timeout != 5*time.Second {
		t.Fatalf("unexpected upstream timeout %v", cfg.Upstream.Timeout)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0].Symbol != "BTC" {
		t.Fatalf("unexpected symbols %+v", cfg.Symbols)
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no environment", "upstream: {api_key: k}\nsymbols: [{symbol: BTC}]"},
		{"no api key", "environment: test\nsymbols: [{symbol: BTC}]"},
		{"no symbols", "environment: test\nupstream: {api_key: k}"},
		{"kafka without brokers", minimalYAML + "kafka:\n  enabled: true"},
		{"clickhouse without host", minimalYAML + "clickhouse:\n  enabled: true"},
		{"inverted confidence band", "environment: test\nupstream: {api_key: k}\nsymbols: [{symbol: BTC}]\nscheduler: {confidence_floor: 80, confidence_ceiling: 50}"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CMC_API_KEY", "env-key")
	t.Setenv("SYMBOLS", "sol, ada")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.Upstream.APIKey != "env-key" {
		t.Fatalf("api key not overridden: %q", cfg.Upstream.APIKey)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0].Symbol != "SOL" || cfg.Symbols[1].Symbol != "ADA" {
		t.Fatalf("symbols not overridden: %+v", cfg.Symbols)
	}
}

func TestEnvSuppliesMissingAPIKey(t *testing.T) {
	t.Setenv("CMC_API_KEY", "env-only-key")

	// The file alone would fail validation; the env var must be enough.
	body := strings.Replace(minimalYAML, "api_key: test-key", `api_key: ""`, 1)
	cfg, err := LoadWithEnv(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load with env-supplied key: %v", err)
	}
	if cfg.Upstream.APIKey != "env-only-key" {
		t.Fatalf("api key not taken from env: %q", cfg.Upstream.APIKey)
	}

	// Load without the env path still rejects the empty key.
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("Load must still require a key in the file")
	}
}
