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
	"fmt"

	"github.com/weaveloop/weave/internal/mcp/protocol"
)

// ListTools returns the server's current tool catalog, refreshing the cache.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      c.nextRequestID(),
		Method:  "tools/list",
		Params:  json.RawMessage(`{}`),
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var result protocol.ToolListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}

	c.toolsMu.Lock()
	c.tools = make(map[string]protocol.Tool)
	for _, tool := range result.Tools {
		c.tools[tool.Name] = tool
	}
	c.toolsMu.Unlock()

	return result.Tools, nil
}

// CallTool validates arguments against the cached schema and invokes the tool.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	tool, err := c.getTool(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tool %s not found: %w", name, err)
	}
	if err := protocol.ValidateToolArguments(tool, arguments); err != nil {
		return nil, fmt.Errorf("invalid arguments for tool %s: %w", name, err)
	}

	paramsJSON, err := json.Marshal(protocol.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      c.nextRequestID(),
		Method:  "tools/call",
		Params:  paramsJSON,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var result protocol.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}

	if result.IsError {
		if len(result.Content) > 0 && result.Content[0].Type == "text" {
			return nil, fmt.Errorf("tool error: %s", result.Content[0].Text)
		}
		return nil, fmt.Errorf("tool returned error")
	}

	return &result, nil
}

func (c *Client) getTool(ctx context.Context, name string) (protocol.Tool, error) {
	c.toolsMu.RLock()
	tool, exists := c.tools[name]
	c.toolsMu.RUnlock()
	if exists {
		return tool, nil
	}

	if _, err := c.ListTools(ctx); err != nil {
		return protocol.Tool{}, err
	}

	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	tool, exists = c.tools[name]
	if !exists {
		return protocol.Tool{}, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}
