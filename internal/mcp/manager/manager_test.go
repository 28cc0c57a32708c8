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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/csync"
	"github.com/weaveloop/weave/internal/mcp/client"
	"github.com/weaveloop/weave/internal/mcp/protocol"
)

// listTransport answers only tools/list, with a fixed tool set — enough
// to exercise Manager.Catalog/ResolveTool without a live MCP server.
type listTransport struct {
	tools  []protocol.Tool
	recvCh chan []byte
	closed chan struct{}
}

func newListTransport(tools []protocol.Tool) *listTransport {
	return &listTransport{tools: tools, recvCh: make(chan []byte, 4), closed: make(chan struct{})}
}

func (l *listTransport) Send(ctx context.Context, message []byte) error {
	var req protocol.Request
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	if req.ID == nil {
		return nil
	}

	var result interface{}
	switch req.Method {
	case "tools/list":
		result = protocol.ToolListResult{Tools: l.tools}
	default:
		result = struct{}{}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	respJSON, err := json.Marshal(protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: resultJSON})
	if err != nil {
		return err
	}
	l.recvCh <- respJSON
	return nil
}

func (l *listTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-l.recvCh:
		return data, nil
	case <-l.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *listTransport) Close() error {
	close(l.closed)
	return nil
}

func clientWithTools(t *testing.T, tools []protocol.Tool) *client.Client {
	t.Helper()
	c := client.NewClient(client.Config{Transport: newListTransport(tools)})
	t.Cleanup(func() { c.Close() })
	return c
}

func testManager(t *testing.T, servers map[string]ServerConfig, clients map[string]*client.Client) *Manager {
	cm := csync.NewMap[string, *client.Client]()
	for name, c := range clients {
		cm.Set(name, c)
	}
	return &Manager{
		config:  Config{Servers: servers, ClientInfo: ClientInfo{Name: "test", Version: "0"}},
		logger:  zap.NewNop(),
		clients: cm,
		started: true,
	}
}

func TestManager_ResolveTool(t *testing.T) {
	calc := clientWithTools(t, []protocol.Tool{{Name: "add"}})
	notes := clientWithTools(t, []protocol.Tool{{Name: "search_notes"}})

	m := testManager(t, map[string]ServerConfig{
		"calc":  {Enabled: true, ToolFilter: ToolFilter{Include: []string{"add"}}},
		"notes": {Enabled: true, ToolFilter: ToolFilter{All: true}},
	}, map[string]*client.Client{"calc": calc, "notes": notes})

	ctx := context.Background()

	got, err := m.ResolveTool(ctx, "add")
	require.NoError(t, err)
	assert.Same(t, calc, got)

	got, err = m.ResolveTool(ctx, "search_notes")
	require.NoError(t, err)
	assert.Same(t, notes, got)

	_, err = m.ResolveTool(ctx, "missing")
	require.Error(t, err)
}

func TestManager_ResolveTool_Ambiguous(t *testing.T) {
	a := clientWithTools(t, []protocol.Tool{{Name: "shared_tool"}})
	b := clientWithTools(t, []protocol.Tool{{Name: "shared_tool"}})

	m := testManager(t, map[string]ServerConfig{
		"a": {Enabled: true, ToolFilter: ToolFilter{All: true}},
		"b": {Enabled: true, ToolFilter: ToolFilter{All: true}},
	}, map[string]*client.Client{"a": a, "b": b})

	_, err := m.ResolveTool(context.Background(), "shared_tool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered by both")
}

func TestManager_Catalog(t *testing.T) {
	calc := clientWithTools(t, []protocol.Tool{{Name: "add"}, {Name: "subtract"}})
	notes := clientWithTools(t, []protocol.Tool{{Name: "search_notes"}, {Name: "delete_notes"}})

	m := testManager(t, map[string]ServerConfig{
		"calc":  {Enabled: true, ToolFilter: ToolFilter{All: true}},
		"notes": {Enabled: true, ToolFilter: ToolFilter{Exclude: []string{"delete_notes"}, All: true}},
	}, map[string]*client.Client{"calc": calc, "notes": notes})

	catalog, err := m.Catalog(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(catalog))
	for _, tool := range catalog {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"add", "subtract", "search_notes"}, names)
}
