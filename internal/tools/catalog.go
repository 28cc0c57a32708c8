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

import "github.com/weaveloop/weave/internal/provider"

// Tool name constants. read_chunk and apply_patch are not separate
// provider-visible tools — both are invoked as the special first element
// of shell's command array and routed internally.
const (
	ShellToolName      = "shell"
	AddTodoToolName    = "AddTodo"
	UpdateTodoToolName = "UpdateTodo"
	ShowTodosToolName  = "ShowTodos"

	readChunkLiteral  = "read_chunk"
	applyPatchLiteral = "apply_patch"
	listDirLiteral    = "list_dir"
)

// DefaultShellTimeoutSeconds is the turn algorithm's default timeout for
// one shell tool invocation.
const DefaultShellTimeoutSeconds = 10

// Catalog returns the built-in tool set in the provider-neutral shape a
// Request.Tools list needs.
func Catalog() []provider.Tool {
	return []provider.Tool{
		{
			Name: ShellToolName,
			Description: "Execute a shell command. The first element of command may also be " +
				"'read_chunk' (file_name, start_line, end_line) to read a windowed, line-numbered " +
				"slice of a file, 'apply_patch' (patch) to apply a unified diff to the workspace, " +
				"or 'list_dir' (dir_name, [max_depth], [limit]) to list files under a workspace directory.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Command and its arguments as separate array elements.",
					},
					"workdir": map[string]any{
						"type":        "string",
						"description": "Working directory for the command; defaults to the session workspace root.",
					},
					"timeout": map[string]any{
						"type":        "integer",
						"description": "Timeout in seconds; defaults to 10.",
					},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        AddTodoToolName,
			Description: "Add a new todo item to the session's task list.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_description": map[string]any{"type": "string"},
				},
				"required": []string{"task_description"},
			},
		},
		{
			Name:        UpdateTodoToolName,
			Description: "Transition an existing todo item to a new status.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"todo_id":    map[string]any{"type": "string"},
					"new_status": map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
				},
				"required": []string{"todo_id", "new_status"},
			},
		},
		{
			Name:        ShowTodosToolName,
			Description: "List every todo item currently tracked for this session.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}
