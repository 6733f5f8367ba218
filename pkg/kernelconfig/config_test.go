package kernelconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/hybridindex"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "kernel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("MCP_COMMAND", "my-mcp-server")
	dir := t.TempDir()
	path := writeConfig(t, dir, `
version: "1"
mcp_servers:
  files:
    command: ${MCP_COMMAND}
    args: ["--stdio"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MCPServers["files"].Command != "my-mcp-server" {
		t.Fatalf("unexpected command: %+v", cfg.MCPServers["files"])
	}
}

func TestLoadAppliesDefaultWhenEnvMissing(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
cache:
  ttl: ${CACHE_TTL:-10m}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CacheTTL() != 10*time.Minute {
		t.Fatalf("expected 10m default, got %v", cfg.CacheTTL())
	}
}

func TestValidateRejectsUnknownPermissionLevel(t *testing.T) {
	cfg := &Config{Permission: PermissionConfig{Rules: []PermissionRuleConfig{
		{Pattern: "write_file", Level: "maybe"},
	}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown level")
	}
}

func TestPermissionEngineBuildsRulesInOrder(t *testing.T) {
	cfg := &Config{Permission: PermissionConfig{Rules: []PermissionRuleConfig{
		{Pattern: "write_*", Level: "deny"},
		{Pattern: "write_file", Level: "allow", AgentID: "trusted"},
	}}}
	engine := cfg.PermissionEngine()

	if lvl := engine.CheckPermission("write_file", ""); lvl != "deny" {
		t.Fatalf("expected global deny, got %s", lvl)
	}
	if lvl := engine.CheckPermission("write_file", "trusted"); lvl != "allow" {
		t.Fatalf("expected per-agent allow override, got %s", lvl)
	}
}

func TestCacheTTLDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	if cfg.CacheTTL() != 15*time.Minute {
		t.Fatalf("expected 15m default, got %v", cfg.CacheTTL())
	}
}

func TestLoadMissingFileIsNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/kernel.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestHybridIndexConfigWeightsFallsBackToDefaults(t *testing.T) {
	cfg := HybridIndexConfig{}
	w := cfg.Weights()
	if w != hybridindex.DefaultWeights() {
		t.Fatalf("expected defaults with no overrides, got %+v", w)
	}
}

func TestHybridIndexConfigWeightsAppliesOverrides(t *testing.T) {
	cfg := HybridIndexConfig{BM25Weight: 2.0, NGramWeight: 0.1, VectorWeight: 0.5}
	w := cfg.Weights()
	if w.BM25 != 2.0 || w.NGram != 0.1 || w.VectorSeed != 0.5 {
		t.Fatalf("expected overrides applied, got %+v", w)
	}
	// Fields not overridden still fall back to the default tuning.
	if w.Identifier != hybridindex.DefaultWeights().Identifier {
		t.Fatalf("expected identifier weight to keep its default, got %v", w.Identifier)
	}
}
