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
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weaveloop/weave/internal/mcp/manager"
	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/permission"
	"github.com/weaveloop/weave/internal/provider"
	"github.com/weaveloop/weave/internal/session"
)

// Config configures a Dispatcher.
type Config struct {
	Sessions      session.Service
	Approvals     permission.Service
	WorkspaceRoot string
	// WritableRoots additionally confines which paths auto-edit may
	// approve a patch against without asking; WorkspaceRoot is always
	// included.
	WritableRoots []string
	// MCP resolves any tool name not in the built-in catalog against a
	// connected MCP server; nil means no MCP servers are configured.
	MCP *manager.Manager
}

// Dispatcher resolves, validates, approves, and executes one tool call,
// implementing orchestrator.Dispatcher. It always returns a
// message.Result — even a malformed call or a denied approval produces
// one, so the ToolCall/ToolResult pairing invariant holds.
type Dispatcher struct {
	sessions      session.Service
	approvals     permission.Service
	workspaceRoot string
	writableRoots []string
	mcp           *manager.Manager
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	root := cfg.WorkspaceRoot
	if root == "" {
		root = "."
	}
	return &Dispatcher{
		sessions:      cfg.Sessions,
		approvals:     cfg.Approvals,
		workspaceRoot: root,
		writableRoots: append([]string{root}, cfg.WritableRoots...),
		mcp:           cfg.MCP,
	}
}

// Catalog returns the built-in tools plus, when MCP servers are
// configured, every tool they currently register — letting a Registry
// build one session's Request.Tools without knowing MCP exists. A
// server that fails to list its tools is skipped rather than failing
// the whole catalog; dispatchMCP still routes to it if a call arrives.
func (d *Dispatcher) Catalog(ctx context.Context) []provider.Tool {
	builtins := Catalog()
	if d.mcp == nil {
		return builtins
	}

	mcpTools, err := d.mcp.Catalog(ctx)
	if err != nil || len(mcpTools) == 0 {
		return builtins
	}

	out := make([]provider.Tool, 0, len(builtins)+len(mcpTools))
	out = append(out, builtins...)
	for _, t := range mcpTools {
		out = append(out, provider.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// Dispatch implements orchestrator.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, call message.Call) message.Result {
	switch call.Name {
	case ShellToolName:
		return d.dispatchShell(ctx, sessionID, call)
	case AddTodoToolName:
		var p AddTodoParams
		if err := unmarshalArgs(call.Arguments, &p); err != nil {
			return errResult(call.ID, err)
		}
		content, isError, err := d.runAddTodo(ctx, sessionID, p)
		return resultOf(call.ID, content, isError, err)
	case UpdateTodoToolName:
		var p UpdateTodoParams
		if err := unmarshalArgs(call.Arguments, &p); err != nil {
			return errResult(call.ID, err)
		}
		content, isError, err := d.runUpdateTodo(ctx, sessionID, p)
		return resultOf(call.ID, content, isError, err)
	case ShowTodosToolName:
		content, isError, err := d.runShowTodos(ctx, sessionID)
		return resultOf(call.ID, content, isError, err)
	default:
		if d.mcp != nil {
			return d.dispatchMCP(ctx, sessionID, call)
		}
		return message.Result{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    fmt.Sprintf("unknown tool %q", call.Name),
		}
	}
}

// dispatchMCP routes a call not in the built-in catalog to whichever
// connected MCP server registers it, gated by the same approval policy as
// shell (an MCP tool can have arbitrary external side effects, so it is
// never treated as implicitly safe the way read_chunk is).
func (d *Dispatcher) dispatchMCP(ctx context.Context, sessionID string, call message.Call) message.Result {
	mcpClient, err := d.mcp.ResolveTool(ctx, call.Name)
	if err != nil {
		return errResult(call.ID, err)
	}

	if d.approvals != nil && !d.approvals.SkipRequests(sessionID) && d.policyFor(ctx, sessionID) != session.PolicyFullAuto {
		resolution, err := d.approvals.RequestApproval(ctx, permission.Request{
			SessionID:   sessionID,
			ToolCallID:  call.ID,
			ToolName:    call.Name,
			Description: fmt.Sprintf("call MCP tool %q", call.Name),
			Arguments:   call.Arguments,
		})
		if err != nil {
			return errResult(call.ID, err)
		}
		if resolution == permission.ResolutionDenyContinue || resolution == permission.ResolutionDenyExit {
			return message.Result{ToolCallID: call.ID, IsError: true, Content: denyMessage(resolution)}
		}
	}

	var args map[string]interface{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errResult(call.ID, fmt.Errorf("invalid arguments: %w", err))
		}
	}

	result, err := mcpClient.CallTool(ctx, call.Name, args)
	if err != nil {
		return errResult(call.ID, err)
	}

	var text []string
	for _, c := range result.Content {
		if c.Type == "text" {
			text = append(text, c.Text)
		}
	}
	return message.Result{ToolCallID: call.ID, Content: strings.Join(text, "\n")}
}

func (d *Dispatcher) dispatchShell(ctx context.Context, sessionID string, call message.Call) message.Result {
	var p ShellParams
	if err := unmarshalArgs(call.Arguments, &p); err != nil {
		return errResult(call.ID, err)
	}
	if len(p.Command) == 0 {
		return errResult(call.ID, fmt.Errorf("'command' must be an array of strings"))
	}

	if d.requiresApproval(ctx, sessionID, p) {
		resolution, err := d.approvals.RequestApproval(ctx, permission.Request{
			SessionID:  sessionID,
			ToolCallID: call.ID,
			ToolName:   ShellToolName,
			Description: fmt.Sprintf("run: %v", p.Command),
			Arguments:  call.Arguments,
		})
		if err != nil {
			return errResult(call.ID, err)
		}
		if resolution == permission.ResolutionDenyContinue || resolution == permission.ResolutionDenyExit {
			return message.Result{ToolCallID: call.ID, IsError: true, Content: denyMessage(resolution)}
		}
	}

	content, isError, err := d.runShell(ctx, p)
	return resultOf(call.ID, content, isError, err)
}

// requiresApproval implements the effective approval policy: suggest asks
// for everything except the read-only read_chunk and list_dir literals; auto-edit
// additionally auto-approves apply_patch whose target paths resolve
// within the Dispatcher's writable roots; full-auto never asks.
func (d *Dispatcher) requiresApproval(ctx context.Context, sessionID string, p ShellParams) bool {
	if d.approvals == nil {
		return false
	}
	if d.approvals.SkipRequests(sessionID) {
		return false
	}
	if len(p.Command) > 0 && (p.Command[0] == readChunkLiteral || p.Command[0] == listDirLiteral) {
		return false // read-only allow-list
	}

	policy := d.policyFor(ctx, sessionID)
	switch policy {
	case session.PolicyFullAuto:
		return false
	case session.PolicyAutoEdit:
		if len(p.Command) > 0 && p.Command[0] == applyPatchLiteral && len(p.Command) > 1 {
			patches, err := parseUnifiedDiff(p.Command[1])
			if err == nil && allPatchesWritable(patches, d.writableRoots) {
				return false
			}
		}
		return true
	default: // session.PolicySuggest and any unrecognized value
		return true
	}
}

func allPatchesWritable(patches []filePatch, roots []string) bool {
	for _, p := range patches {
		if !withinAny(p.Path, roots) {
			return false
		}
	}
	return true
}

func (d *Dispatcher) policyFor(ctx context.Context, sessionID string) session.ApprovalPolicy {
	if d.sessions == nil {
		return session.PolicySuggest
	}
	sess, err := d.sessions.Get(ctx, sessionID)
	if err != nil || sess.ApprovalPolicy == "" {
		return session.PolicySuggest
	}
	return sess.ApprovalPolicy
}

func denyMessage(resolution permission.Resolution) string {
	switch resolution {
	case permission.ResolutionDenyExit:
		return "the user denied this tool call and ended the turn"
	default:
		return "the user denied this tool call"
	}
}

func unmarshalArgs(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func errResult(callID string, err error) message.Result {
	return message.Result{ToolCallID: callID, IsError: true, Content: err.Error()}
}

func resultOf(callID, content string, isError bool, err error) message.Result {
	if err != nil {
		return errResult(callID, err)
	}
	return message.Result{ToolCallID: callID, Content: content, IsError: isError}
}
