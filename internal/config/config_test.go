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
package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveloop/weave/internal/session"
)

// resetViper undoes setDefaults' mutation of the package-level viper
// singleton between tests, since Load/defaultConfig both read/write it.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestNormalize_FallsBackOnInvalidApprovalPolicy(t *testing.T) {
	cfg := &Config{Session: SessionConfig{ApprovalPolicy: "bogus", ContextStrategy: session.StrategyThreshold}}
	normalize(cfg)
	assert.Equal(t, session.PolicySuggest, cfg.Session.ApprovalPolicy)
}

func TestNormalize_FallsBackOnInvalidContextStrategy(t *testing.T) {
	cfg := &Config{Session: SessionConfig{ApprovalPolicy: session.PolicySuggest, ContextStrategy: "bogus"}}
	normalize(cfg)
	assert.Equal(t, session.StrategyThreshold, cfg.Session.ContextStrategy)
}

func TestNormalize_KeepsValidEnumValues(t *testing.T) {
	cfg := &Config{Session: SessionConfig{ApprovalPolicy: session.PolicyFullAuto, ContextStrategy: session.StrategyPassive}}
	normalize(cfg)
	assert.Equal(t, session.PolicyFullAuto, cfg.Session.ApprovalPolicy)
	assert.Equal(t, session.StrategyPassive, cfg.Session.ContextStrategy)
}

func TestNormalize_FillsMCPDefaults(t *testing.T) {
	cfg := &Config{}
	normalize(cfg)
	require.NotNil(t, cfg.MCP.Servers)
	assert.Equal(t, "weaved", cfg.MCP.ClientInfo.Name)
}

func TestDefaultConfig_SetsExpectedDefaults(t *testing.T) {
	resetViper(t)
	cfg := defaultConfig()

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, session.PolicySuggest, cfg.Session.ApprovalPolicy)
	assert.Equal(t, session.StrategyThreshold, cfg.Session.ContextStrategy)
	assert.Equal(t, 0.8, cfg.Session.CompactThreshold)
	assert.Equal(t, "0 3 * * *", cfg.Session.ArchiveSweepCron)
	assert.Equal(t, 30, cfg.Session.ArchiveRetentionDays)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Session.DBPath)
	assert.True(t, filepath.IsAbs(cfg.Session.DBPath) || cfg.Session.DBPath != "")
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("WEAVE_SERVER_PORT", "9999")
	t.Setenv("WEAVE_SESSION_ARCHIVE_RETENTION_DAYS", "7")
	t.Setenv("WEAVE_LOGGING_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Session.ArchiveRetentionDays)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_InvalidApprovalPolicyFallsBackAndWarns(t *testing.T) {
	resetViper(t)
	t.Setenv("WEAVE_SESSION_APPROVAL_POLICY", "not-a-real-policy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, session.PolicySuggest, cfg.Session.ApprovalPolicy)
}

func TestValidate_RequiresAnthropicKeyForAnthropicProvider(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8787}, LLM: LLMConfig{Provider: "anthropic"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic API key")
}

func TestValidate_AcceptsBedrockWithRegionOnly(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8787}, LLM: LLMConfig{Provider: "bedrock", BedrockRegion: "us-west-2"}}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnsupportedProvider(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 8787}, LLM: LLMConfig{Provider: "not-a-provider"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm.provider")
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 0}, LLM: LLMConfig{Provider: "anthropic", AnthropicAPIKey: "x"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server.port")
}

func TestCurrent_ReturnsDefaultsBeforeLoad(t *testing.T) {
	mu.Lock()
	current = nil
	mu.Unlock()
	resetViper(t)

	cfg := Current()
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}
