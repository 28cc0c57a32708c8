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

	"github.com/weaveloop/weave/internal/session"
)

// AddTodoParams is the AddTodo tool's argument shape.
type AddTodoParams struct {
	TaskDescription string `json:"task_description"`
}

// UpdateTodoParams is the UpdateTodo tool's argument shape.
type UpdateTodoParams struct {
	TodoID    string `json:"todo_id"`
	NewStatus string `json:"new_status"`
}

func (d *Dispatcher) runAddTodo(ctx context.Context, sessionID string, p AddTodoParams) (string, bool, error) {
	if p.TaskDescription == "" {
		return "", true, fmt.Errorf("'task_description' is required")
	}
	sess, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", true, fmt.Errorf("load session: %w", err)
	}

	todo := session.NewTodoItem(p.TaskDescription, "")
	sess.Todos = append(sess.Todos, todo)
	if _, err := d.sessions.Update(ctx, sess); err != nil {
		return "", true, fmt.Errorf("save todo: %w", err)
	}

	return fmt.Sprintf("Added todo %s (status PENDING): %s", todo.ID, todo.ShortTaskDescription), false, nil
}

func (d *Dispatcher) runUpdateTodo(ctx context.Context, sessionID string, p UpdateTodoParams) (string, bool, error) {
	status, ok := parseTodoStatus(p.NewStatus)
	if !ok {
		return "", true, fmt.Errorf("'new_status' must be one of pending, in_progress, completed")
	}

	sess, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", true, fmt.Errorf("load session: %w", err)
	}

	for i := range sess.Todos {
		if sess.Todos[i].ID == p.TodoID {
			from := sess.Todos[i].Status
			sess.Todos[i].Status = status
			if _, err := d.sessions.Update(ctx, sess); err != nil {
				return "", true, fmt.Errorf("save todo: %w", err)
			}
			return fmt.Sprintf("Todo %s: %s -> %s", p.TodoID, from, status), false, nil
		}
	}
	return "", true, fmt.Errorf("no todo with id %q", p.TodoID)
}

func (d *Dispatcher) runShowTodos(ctx context.Context, sessionID string) (string, bool, error) {
	sess, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", true, fmt.Errorf("load session: %w", err)
	}

	raw, err := json.Marshal(sess.Todos)
	if err != nil {
		return "", true, fmt.Errorf("encode todos: %w", err)
	}

	if len(sess.Todos) == 0 {
		return "No todos.\n" + string(raw), false, nil
	}

	out := fmt.Sprintf("%d todo(s):\n", len(sess.Todos))
	for _, t := range sess.Todos {
		out += fmt.Sprintf("- [%s] %s (%s)\n", t.Status, t.ShortTaskDescription, t.ID)
	}
	return out + string(raw), false, nil
}

func parseTodoStatus(s string) (session.TodoStatus, bool) {
	switch session.TodoStatus(s) {
	case session.TodoStatusPending, session.TodoStatusInProgress, session.TodoStatusCompleted:
		return session.TodoStatus(s), true
	default:
		return "", false
	}
}
