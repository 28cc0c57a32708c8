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
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveloop/weave/internal/config"
	"github.com/weaveloop/weave/internal/session"
)

func TestBuildProviderResolver_NoCredentials(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Provider: "anthropic"}}
	_, err := buildProviderResolver(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestBuildProviderResolver_FallsBackToDefault(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Provider:        "anthropic",
			AnthropicAPIKey: "test-key",
		},
	}
	resolve, err := buildProviderResolver(cfg)
	require.NoError(t, err)

	p, err := resolve(session.Session{ID: "s1"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestBuildProviderResolver_UnconfiguredSessionProvider(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Provider:        "anthropic",
			AnthropicAPIKey: "test-key",
		},
	}
	resolve, err := buildProviderResolver(cfg)
	require.NoError(t, err)

	_, err = resolve(session.Session{ID: "s1", Provider: "openai"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai")
}

func TestBuildLogger(t *testing.T) {
	logger, err := buildLogger(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = buildLogger(config.LoggingConfig{Level: "not-a-level", Format: "text"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
