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
// Package manager orchestrates the set of MCP servers a session has configured.
package manager

import "fmt"

// Config is the full set of MCP servers available to a session.
type Config struct {
	Servers    map[string]ServerConfig `yaml:"servers" json:"servers"`
	ClientInfo ClientInfo              `yaml:"client_info" json:"client_info"`
}

// ServerConfig configures one MCP server connection.
type ServerConfig struct {
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Command    string            `yaml:"command" json:"command"` // stdio transport
	Args       []string          `yaml:"args" json:"args"`
	Env        map[string]string `yaml:"env" json:"env"`
	ToolFilter ToolFilter        `yaml:"tools" json:"tools"`
	Transport  string            `yaml:"transport" json:"transport"` // "stdio" | "http" | "sse"
	URL        string            `yaml:"url" json:"url"`             // http/sse transport
	Timeout    string            `yaml:"timeout" json:"timeout"`
}

// ToolFilter controls which of a server's tools get registered with the catalog.
type ToolFilter struct {
	All     bool     `yaml:"all" json:"all"`
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// ClientInfo is sent to every MCP server during its handshake.
type ClientInfo struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for name, server := range c.Servers {
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks one server's configuration for errors.
func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Transport == "" {
		s.Transport = "stdio"
	}
	switch s.Transport {
	case "stdio":
		if s.Command == "" {
			return fmt.Errorf("command required for stdio transport")
		}
	case "http", "sse":
		if s.URL == "" {
			return fmt.Errorf("url required for http/sse transport")
		}
	default:
		return fmt.Errorf("invalid transport: %s (must be 'stdio', 'http', or 'sse')", s.Transport)
	}
	return nil
}

// ShouldRegisterTool applies the include/exclude filter to one tool name.
func (f *ToolFilter) ShouldRegisterTool(toolName string) bool {
	if contains(f.Exclude, toolName) {
		return false
	}
	if len(f.Include) > 0 {
		return contains(f.Include, toolName)
	}
	return f.All
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// DefaultConfig returns a configuration with no servers registered.
func DefaultConfig() Config {
	return Config{
		Servers:    make(map[string]ServerConfig),
		ClientInfo: ClientInfo{Name: "weaved", Version: "0.1.0"},
	}
}
