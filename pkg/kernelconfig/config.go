// Package kernelconfig loads and validates the kernel's YAML
// configuration: LSP/MCP server definitions, permission rules, agent
// wiring, and the tunables for the cache, session store, and hybrid
// index. Configuration is YAML-first with ${VAR}/${VAR:-default}
// environment-variable expansion, mirroring the ambient config style of
// the codebase this kernel was adapted from.
package kernelconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/coderkernel/pkg/hybridindex"
	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/permission"
)

// Config is the root configuration structure for the kernel.
type Config struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name,omitempty"`

	LSPServers map[string]LSPServerConfig `yaml:"lsp_servers,omitempty"`
	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers,omitempty"`
	Agents     map[string]AgentConfig     `yaml:"agents,omitempty"`
	Permission PermissionConfig           `yaml:"permission,omitempty"`
	Cache      CacheConfig                `yaml:"cache,omitempty"`
	Session    SessionConfig              `yaml:"session_store,omitempty"`
	HybridIdx  HybridIndexConfig          `yaml:"hybrid_index,omitempty"`
	Logger     LoggerConfig               `yaml:"logger,omitempty"`
}

// LSPServerConfig configures a JSON-RPC (LSP) server connection.
type LSPServerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// MCPServerConfig configures a stdio-transport MCP server connection.
type MCPServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// AgentConfig names an agent participating in the Agent Registry and the
// task types it supports; concrete agent behavior is wired in code.
type AgentConfig struct {
	TaskTypes []string `yaml:"task_types,omitempty"`
}

// PermissionConfig is the on-disk form of Permission Engine rules.
type PermissionConfig struct {
	Rules []PermissionRuleConfig `yaml:"rules,omitempty"`
}

// PermissionRuleConfig is one YAML-declared permission rule.
type PermissionRuleConfig struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	AgentID string `yaml:"agent_id,omitempty"`
}

// CacheConfig tunes the Analysis Cache.
type CacheConfig struct {
	TTL string `yaml:"ttl,omitempty"`
}

// SessionConfig tunes the Session Store.
type SessionConfig struct {
	Dir            string `yaml:"dir,omitempty"`
	Encryption     string `yaml:"encryption,omitempty"` // "", "standard", "enterprise"
	Password       string `yaml:"password,omitempty"`
	MixedModeReads bool   `yaml:"mixed_mode_reads,omitempty"`
	RetentionHours int    `yaml:"retention_hours,omitempty"`
}

// HybridIndexConfig tunes the Hybrid Index's ranking weights and
// optional vector-store seeding.
type HybridIndexConfig struct {
	ArtifactsDir string  `yaml:"artifacts_dir,omitempty"`
	BM25Weight   float64 `yaml:"bm25_weight,omitempty"`
	NGramWeight  float64 `yaml:"ngram_weight,omitempty"`
	VectorWeight float64 `yaml:"vector_weight,omitempty"`
	VectorStore  string  `yaml:"vector_store,omitempty"` // "", "chromem"
	VectorDBPath string  `yaml:"vector_db_path,omitempty"`
}

// Weights builds hybridindex rerank weights from the configured
// overrides, falling back to hybridindex.DefaultWeights for any field
// left at its YAML zero value.
func (c HybridIndexConfig) Weights() hybridindex.Weights {
	w := hybridindex.DefaultWeights()
	if c.BM25Weight != 0 {
		w.BM25 = c.BM25Weight
	}
	if c.NGramWeight != 0 {
		w.NGram = c.NGramWeight
	}
	if c.VectorWeight != 0 {
		w.VectorSeed = c.VectorWeight
	}
	return w
}

// LoggerConfig configures the ambient structured logger.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Load reads a YAML config file from path, expands ${VAR} references
// against the process environment (after loading any .env file found in
// the same directory via godotenv), and validates the result.
func Load(path string) (*Config, error) {
	const op = "kernelconfig.Load"

	dotenvPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(dotenvPath); err == nil {
		_ = godotenv.Load(dotenvPath)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.NotFound, err)
	}

	expanded := expandEnvVars(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.ValidationError, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants that the YAML schema alone
// can't express (permission levels, duration strings).
func (c *Config) Validate() error {
	const op = "kernelconfig.Config.Validate"
	for _, rule := range c.Permission.Rules {
		switch permission.Level(rule.Level) {
		case permission.Allow, permission.Ask, permission.Deny:
		default:
			return kernelerr.Wrap(op, kernelerr.ValidationError,
				fmt.Errorf("permission rule %q: invalid level %q", rule.Pattern, rule.Level))
		}
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return kernelerr.Wrap(op, kernelerr.ValidationError, fmt.Errorf("cache.ttl: %w", err))
		}
	}
	return nil
}

// PermissionEngine builds a permission.Engine from the config's rules.
func (c *Config) PermissionEngine() *permission.Engine {
	e := permission.New()
	for _, rule := range c.Permission.Rules {
		e.AddRule(permission.Rule{
			Pattern: rule.Pattern,
			Level:   permission.Level(rule.Level),
			AgentID: rule.AgentID,
		})
	}
	return e
}

// CacheTTL returns the configured Analysis Cache TTL, defaulting to 15
// minutes when unset.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTL == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
