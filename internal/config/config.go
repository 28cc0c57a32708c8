// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the orchestrator server's configuration: provider
// selection, per-provider API keys, workspace paths, and the session
// defaults (approval policy, context strategy) spec §6 requires. Priority
// is CLI flags > environment variables (WEAVE_ prefix) > config file >
// defaults, matching the teacher's viper convention.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/home"
	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/mcp/manager"
	"github.com/weaveloop/weave/internal/session"
	"github.com/weaveloop/weave/internal/version"
)

// ServiceName is the keyring service under which provider API keys are stored.
const ServiceName = "weave"

// DefaultConfigFileName is the config file's base name (without extension).
const DefaultConfigFileName = "weave"

// Config holds the orchestrator server's full runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	// MCP lists the external tool servers every session's Dispatcher
	// connects to; empty means no MCP servers are configured.
	MCP manager.Config `mapstructure:"mcp"`
}

// ServerConfig holds transport-level configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LLMConfig holds provider selection and per-provider settings. API keys
// are never populated from the config file — only from env vars or the
// system keyring (see loadSecrets).
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // anthropic, openai, bedrock

	AnthropicModel  string `mapstructure:"anthropic_model"`
	AnthropicAPIKey string `mapstructure:"-"`

	OpenAIModel  string `mapstructure:"openai_model"`
	OpenAIAPIKey string `mapstructure:"-"`

	BedrockRegion  string `mapstructure:"bedrock_region"`
	BedrockModelID string `mapstructure:"bedrock_model_id"`
	BedrockProfile string `mapstructure:"bedrock_profile"`

	MaxTokens      int `mapstructure:"max_tokens"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// SessionConfig holds the defaults a newly created session inherits, and
// the directories its durable state lives under.
type SessionConfig struct {
	WorkspaceRoot    string                  `mapstructure:"workspace_root"`
	SessionStoreDir  string                  `mapstructure:"session_store_dir"` // journal .jsonl files
	TodosStoreDir    string                  `mapstructure:"todos_store_dir"`   // reserved for a future standalone todo store
	DBPath           string                  `mapstructure:"db_path"`           // sqlite session index
	ApprovalPolicy   session.ApprovalPolicy  `mapstructure:"approval_policy"`
	ContextStrategy  session.ContextStrategy `mapstructure:"context_strategy"`
	CompactThreshold float64                 `mapstructure:"compact_threshold"`

	// ArchiveSweepCron schedules the sweep that erases archived journals
	// (see journal.Archive) once they exceed ArchiveRetentionDays.
	ArchiveSweepCron     string `mapstructure:"archive_sweep_cron"`
	ArchiveRetentionDays int    `mapstructure:"archive_retention_days"`
}

// LoggingConfig controls the global zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // "text" (development console) or "json" (production)
}

var (
	mu      sync.RWMutex
	current *Config
)

// Load reads configuration from cfgFile (or the standard search path if
// empty), environment variables (WEAVE_ prefix), and defaults, then
// normalizes it: an invalid approval policy / context strategy falls back
// to "suggest"/"threshold" with a warning, per spec §6. Load does not call
// Validate.
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dataDir, err := home.Dir()
		if err == nil {
			v.AddConfigPath(dataDir)
		}
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	loadSecrets(&cfg)
	normalize(&cfg)

	mu.Lock()
	current = &cfg
	mu.Unlock()
	return &cfg, nil
}

// Current returns the most recently Load-ed configuration, or defaults if
// Load has never run.
func Current() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return defaultConfig()
	}
	return current
}

func setDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8787)

	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("llm.openai_model", "gpt-4.1")
	viper.SetDefault("llm.bedrock_region", "us-west-2")
	viper.SetDefault("llm.bedrock_model_id", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")
	viper.SetDefault("llm.max_tokens", 8192)
	viper.SetDefault("llm.timeout_seconds", 120)

	dataDir, err := home.Dir()
	if err != nil {
		dataDir = filepath.Join(os.TempDir(), "weave")
	}
	viper.SetDefault("session.workspace_root", ".")
	viper.SetDefault("session.session_store_dir", filepath.Join(dataDir, "sessions"))
	viper.SetDefault("session.todos_store_dir", filepath.Join(dataDir, "todos"))
	viper.SetDefault("session.db_path", filepath.Join(dataDir, "weave.db"))
	viper.SetDefault("session.approval_policy", string(session.PolicySuggest))
	viper.SetDefault("session.context_strategy", string(session.StrategyThreshold))
	viper.SetDefault("session.compact_threshold", 0.8)
	viper.SetDefault("session.archive_sweep_cron", "0 3 * * *")
	viper.SetDefault("session.archive_retention_days", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

func defaultConfig() *Config {
	setDefaults()
	var cfg Config
	_ = viper.Unmarshal(&cfg)
	normalize(&cfg)
	return &cfg
}

// normalize applies spec §6's fallback rules for invalid enum-shaped
// config values, each logged as a warning rather than treated as fatal.
func normalize(cfg *Config) {
	switch cfg.Session.ApprovalPolicy {
	case session.PolicySuggest, session.PolicyAutoEdit, session.PolicyFullAuto:
	default:
		log.Warn("config: invalid approval_policy, falling back to suggest",
			zap.String("value", string(cfg.Session.ApprovalPolicy)))
		cfg.Session.ApprovalPolicy = session.PolicySuggest
	}

	switch cfg.Session.ContextStrategy {
	case session.StrategyThreshold, session.StrategyPassive:
	default:
		log.Warn("config: invalid context_strategy, falling back to threshold",
			zap.String("value", string(cfg.Session.ContextStrategy)))
		cfg.Session.ContextStrategy = session.StrategyThreshold
	}

	if cfg.MCP.Servers == nil {
		cfg.MCP.Servers = make(map[string]manager.ServerConfig)
	}
	if cfg.MCP.ClientInfo.Name == "" {
		cfg.MCP.ClientInfo = manager.ClientInfo{Name: "weaved", Version: version.Get()}
	}
}

// Validate checks the fields required to actually start serving traffic:
// a real provider selection and an API key available for it.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("config: anthropic API key is required (set WEAVE_LLM_ANTHROPIC_API_KEY or save to keyring)")
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("config: openai API key is required (set WEAVE_LLM_OPENAI_API_KEY or save to keyring)")
		}
	case "bedrock":
		if c.LLM.BedrockRegion == "" {
			return fmt.Errorf("config: bedrock_region is required")
		}
	default:
		return fmt.Errorf("config: unsupported llm.provider %q (must be anthropic, openai, or bedrock)", c.LLM.Provider)
	}
	return nil
}

// secretMapping describes one keyring-backed secret and how to apply it.
type secretMapping struct {
	key    string
	isSet  func(*Config) bool
	setter func(*Config, string)
}

func secretMappings() []secretMapping {
	return []secretMapping{
		{"anthropic_api_key", func(c *Config) bool { return c.LLM.AnthropicAPIKey != "" }, func(c *Config, v string) { c.LLM.AnthropicAPIKey = v }},
		{"openai_api_key", func(c *Config) bool { return c.LLM.OpenAIAPIKey != "" }, func(c *Config, v string) { c.LLM.OpenAIAPIKey = v }},
	}
}

// loadSecrets sets each API key from its environment variable
// (WEAVE_LLM_*_API_KEY, else the provider's own *_API_KEY), then fills any
// key still empty from the system keyring. Non-fatal: a keyring miss is
// not an error, since the caller can still supply the key another way.
func loadSecrets(cfg *Config) {
	cfg.LLM.AnthropicAPIKey = firstNonEmpty(os.Getenv("WEAVE_LLM_ANTHROPIC_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"))
	cfg.LLM.OpenAIAPIKey = firstNonEmpty(os.Getenv("WEAVE_LLM_OPENAI_API_KEY"), os.Getenv("OPENAI_API_KEY"))

	for _, m := range secretMappings() {
		if m.isSet(cfg) {
			continue
		}
		if value, err := keyring.Get(ServiceName, m.key); err == nil && value != "" {
			m.setter(cfg, value)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SaveSecret stores one provider API key in the system keyring.
func SaveSecret(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// WatchFile re-runs onChange whenever cfgFile is modified on disk,
// grounded on the teacher's hot-reload config knobs. Returns a stop
// function; the returned watcher is closed when stop is called.
func WatchFile(cfgFile string, onChange func(*Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: start watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(cfgFile)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", cfgFile, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == cfgFile && (ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
					cfg, loadErr := Load(cfgFile)
					if loadErr != nil {
						log.Warn("config: reload failed", zap.Error(loadErr))
						continue
					}
					onChange(cfg)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config: watcher error", zap.Error(werr))
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
