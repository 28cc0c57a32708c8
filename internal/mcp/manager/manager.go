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
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/csync"
	"github.com/weaveloop/weave/internal/mcp/client"
	"github.com/weaveloop/weave/internal/mcp/protocol"
	"github.com/weaveloop/weave/internal/mcp/transport"
)

// Manager owns every configured MCP server connection; one Manager is
// shared by all sessions of the process.
type Manager struct {
	config  Config
	logger  *zap.Logger
	clients *csync.Map[string, *client.Client]
	mu      sync.Mutex // guards started; clients has its own internal locking
	started bool
}

// NewManager validates config and returns an unstarted Manager.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mcp config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:  config,
		logger:  logger,
		clients: csync.NewMap[string, *client.Client](),
	}, nil
}

// Start connects to every enabled server. It returns an error only if every
// server failed; partial failures are logged and the manager still starts.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("manager already started")
	}

	var startErrors []error
	for name, serverConfig := range m.config.Servers {
		if !serverConfig.Enabled {
			continue
		}
		if err := m.startServer(ctx, name, serverConfig); err != nil {
			m.logger.Error("mcp server failed to start", zap.String("server", name), zap.Error(err))
			startErrors = append(startErrors, fmt.Errorf("server %s: %w", name, err))
		} else {
			m.logger.Info("mcp server started", zap.String("server", name))
		}
	}

	m.started = true

	connected := m.clientCount()
	if len(startErrors) > 0 && connected == 0 {
		return fmt.Errorf("all mcp servers failed to start: %v", startErrors)
	}
	if len(startErrors) > 0 {
		m.logger.Warn("some mcp servers failed to start", zap.Int("failed", len(startErrors)), zap.Int("started", connected))
	}
	return nil
}

func (m *Manager) clientCount() int {
	n := 0
	m.clients.Seq(func(string, *client.Client) bool { n++; return true })
	return n
}

func (m *Manager) startServer(ctx context.Context, name string, config ServerConfig) error {
	var trans transport.Transport
	var err error

	switch config.Transport {
	case "stdio":
		trans, err = transport.NewStdioTransport(transport.StdioConfig{
			Command: config.Command,
			Args:    config.Args,
			Env:     config.Env,
			Logger:  m.logger.With(zap.String("server", name)),
		})
	case "http", "sse":
		trans, err = transport.NewHTTPTransport(transport.HTTPConfig{
			Endpoint: config.URL,
			Logger:   m.logger.With(zap.String("server", name)),
		})
	default:
		return fmt.Errorf("unsupported transport: %s", config.Transport)
	}
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	mcpClient := client.NewClient(client.Config{
		Transport: trans,
		Logger:    m.logger.With(zap.String("server", name)),
	})

	initCtx := ctx
	if config.Timeout != "" {
		timeout, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	clientInfo := protocol.Implementation{Name: m.config.ClientInfo.Name, Version: m.config.ClientInfo.Version}
	if err := mcpClient.Initialize(initCtx, clientInfo); err != nil {
		trans.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	m.clients.Set(name, mcpClient)
	return nil
}

// Stop closes every connected server.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	var errs []error
	m.clients.Seq(func(name string, c *client.Client) bool {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", name, err))
		}
		return true
	})
	m.clients.Clear()
	m.started = false

	if len(errs) > 0 {
		return fmt.Errorf("errors closing mcp clients: %v", errs)
	}
	return nil
}

// GetClient returns the named server's client.
func (m *Manager) GetClient(serverName string) (*client.Client, error) {
	c, exists := m.clients.Get(serverName)
	if !exists {
		return nil, fmt.Errorf("mcp server not found: %s", serverName)
	}
	return c, nil
}

// ServerNames returns every currently-connected server's name.
func (m *Manager) ServerNames() []string {
	var names []string
	m.clients.Seq(func(name string, _ *client.Client) bool {
		names = append(names, name)
		return true
	})
	return names
}

// ResolveTool finds the single connected server that registers toolName under
// its configured ToolFilter, returning an error if zero or more than one do.
func (m *Manager) ResolveTool(ctx context.Context, toolName string) (*client.Client, error) {
	var found *client.Client
	var foundServer string
	var conflictErr error
	m.clients.Seq(func(name string, c *client.Client) bool {
		serverConfig, ok := m.config.Servers[name]
		if !ok || !serverConfig.ToolFilter.ShouldRegisterTool(toolName) {
			return true
		}
		tools, err := c.ListTools(ctx)
		if err != nil {
			return true
		}
		registered := false
		for _, t := range tools {
			if t.Name == toolName {
				registered = true
				break
			}
		}
		if !registered {
			return true
		}
		if found != nil {
			conflictErr = fmt.Errorf("tool %q is registered by both %q and %q", toolName, foundServer, name)
			return false
		}
		found, foundServer = c, name
		return true
	})
	if conflictErr != nil {
		return nil, conflictErr
	}
	if found == nil {
		return nil, fmt.Errorf("no connected mcp server registers tool %q", toolName)
	}
	return found, nil
}

// Catalog lists every tool registered across connected servers, per each
// server's ToolFilter, refreshing each server's tool cache as it goes.
func (m *Manager) Catalog(ctx context.Context) ([]protocol.Tool, error) {
	type serverClient struct {
		name   string
		client *client.Client
	}
	var servers []serverClient
	m.clients.Seq(func(name string, c *client.Client) bool {
		servers = append(servers, serverClient{name: name, client: c})
		return true
	})

	var catalog []protocol.Tool
	for _, sc := range servers {
		filter := m.config.Servers[sc.name].ToolFilter

		tools, err := sc.client.ListTools(ctx)
		if err != nil {
			m.logger.Warn("list tools failed", zap.String("server", sc.name), zap.Error(err))
			continue
		}
		for _, tool := range tools {
			if filter.ShouldRegisterTool(tool.Name) {
				catalog = append(catalog, tool)
			}
		}
	}
	return catalog, nil
}
