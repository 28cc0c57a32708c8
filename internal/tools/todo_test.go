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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveloop/weave/internal/session"
)

func TestDispatch_TodoLifecycleRoundTripsThroughSessionService(t *testing.T) {
	sess := session.Session{ID: "sess-1"}
	sessions := newFakeSessions(sess)
	d := New(Config{Sessions: sessions})
	ctx := context.Background()

	added, isError, err := d.runAddTodo(ctx, "sess-1", AddTodoParams{TaskDescription: "write tests"})
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Contains(t, added, "PENDING")

	updated, err := sessions.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, updated.Todos, 1)
	todoID := updated.Todos[0].ID

	shown, isError, err := d.runShowTodos(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Contains(t, shown, "write tests")

	transition, isError, err := d.runUpdateTodo(ctx, "sess-1", UpdateTodoParams{TodoID: todoID, NewStatus: "in_progress"})
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Contains(t, transition, "in_progress")

	final, err := sessions.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, session.TodoStatusInProgress, final.Todos[0].Status)
}

func TestRunUpdateTodo_UnknownIDIsAnError(t *testing.T) {
	d := New(Config{Sessions: newFakeSessions(session.Session{ID: "sess-1"})})
	_, isError, err := d.runUpdateTodo(context.Background(), "sess-1", UpdateTodoParams{TodoID: "missing", NewStatus: "completed"})
	assert.True(t, isError)
	assert.Error(t, err)
}

func TestRunUpdateTodo_InvalidStatusIsRejectedBeforeLookup(t *testing.T) {
	d := New(Config{Sessions: newFakeSessions(session.Session{ID: "sess-1"})})
	_, isError, err := d.runUpdateTodo(context.Background(), "sess-1", UpdateTodoParams{TodoID: "whatever", NewStatus: "bogus"})
	assert.True(t, isError)
	assert.Error(t, err)
}

func TestRunShowTodos_EmptyListStillProducesValidContent(t *testing.T) {
	d := New(Config{Sessions: newFakeSessions(session.Session{ID: "sess-1"})})
	content, isError, err := d.runShowTodos(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Contains(t, content, "No todos.")
}
