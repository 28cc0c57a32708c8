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
package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveloop/weave/internal/mcp/protocol"
)

// fakeTransport answers every request in-process instead of speaking to a
// real subprocess or HTTP server, so Client's handshake/request-correlation
// logic can be exercised without a live MCP server.
type fakeTransport struct {
	recvCh chan []byte
	closed chan struct{}

	// handle maps a JSON-RPC method to the result it answers with; a
	// method absent here (e.g. a fire-and-forget notification) gets no
	// response at all, matching a real server.
	handle map[string]func(req *protocol.Request) interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		recvCh: make(chan []byte, 16),
		closed: make(chan struct{}),
		handle: make(map[string]func(req *protocol.Request) interface{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, message []byte) error {
	var req protocol.Request
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	fn, ok := f.handle[req.Method]
	if !ok || req.ID == nil {
		return nil
	}
	result, err := json.Marshal(fn(&req))
	if err != nil {
		return err
	}
	resp := protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: result}
	respJSON, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	f.recvCh <- respJSON
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.recvCh:
		return data, nil
	case <-f.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	close(f.closed)
	return nil
}

func initializedClient(t *testing.T, ft *fakeTransport) *Client {
	t.Helper()
	ft.handle["initialize"] = func(req *protocol.Request) interface{} {
		return protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolVersion,
			ServerInfo:      protocol.Implementation{Name: "fake-server", Version: "0.0.1"},
			Capabilities:    protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{}},
		}
	}

	c := NewClient(Config{Transport: ft})
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Initialize(ctx, protocol.Implementation{Name: "weaved", Version: "test"}))
	return c
}

func TestClient_Initialize(t *testing.T) {
	ft := newFakeTransport()
	c := initializedClient(t, ft)

	assert.True(t, c.IsInitialized())
	assert.Equal(t, "fake-server", c.ServerInfo().Name)
}

func TestClient_Initialize_ProtocolMismatch(t *testing.T) {
	ft := newFakeTransport()
	ft.handle["initialize"] = func(req *protocol.Request) interface{} {
		return protocol.InitializeResult{ProtocolVersion: "1999-01-01"}
	}
	c := NewClient(Config{Transport: ft})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := c.Initialize(ctx, protocol.Implementation{Name: "weaved", Version: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol version mismatch")
}

func TestClient_ListAndCallTool(t *testing.T) {
	ft := newFakeTransport()
	ft.handle["tools/list"] = func(req *protocol.Request) interface{} {
		return protocol.ToolListResult{Tools: []protocol.Tool{
			{
				Name:        "echo",
				Description: "echoes its input",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"text": map[string]interface{}{"type": "string"},
					},
				},
			},
		}}
	}
	ft.handle["tools/call"] = func(req *protocol.Request) interface{} {
		var params protocol.CallToolParams
		_ = json.Unmarshal(req.Params, &params)
		return protocol.CallToolResult{
			Content: []protocol.Content{{Type: "text", Text: params.Arguments["text"].(string)}},
		}
	}

	c := initializedClient(t, ft)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	result, err := c.CallTool(ctx, "echo", map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hello", result.Content[0].Text)
}

func TestClient_CallTool_UnknownTool(t *testing.T) {
	ft := newFakeTransport()
	ft.handle["tools/list"] = func(req *protocol.Request) interface{} {
		return protocol.ToolListResult{Tools: nil}
	}
	c := initializedClient(t, ft)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.CallTool(ctx, "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestClient_CallTool_ServerReportsError(t *testing.T) {
	ft := newFakeTransport()
	ft.handle["tools/list"] = func(req *protocol.Request) interface{} {
		return protocol.ToolListResult{Tools: []protocol.Tool{{Name: "boom"}}}
	}
	ft.handle["tools/call"] = func(req *protocol.Request) interface{} {
		return protocol.CallToolResult{
			IsError: true,
			Content: []protocol.Content{{Type: "text", Text: "exploded"}},
		}
	}
	c := initializedClient(t, ft)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.CallTool(ctx, "boom", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}
