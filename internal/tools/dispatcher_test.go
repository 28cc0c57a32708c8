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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/permission"
	"github.com/weaveloop/weave/internal/pubsub"
	"github.com/weaveloop/weave/internal/session"
)

// fakeSessions is a minimal in-memory session.Service for tests.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newFakeSessions(sessions ...session.Session) *fakeSessions {
	f := &fakeSessions{sessions: make(map[string]session.Session)}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessions) Create(ctx context.Context, title string) (session.Session, error) {
	s := session.Session{ID: session.NewID(), Title: title}
	f.mu.Lock()
	f.sessions[s.ID] = s
	f.mu.Unlock()
	return s, nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return session.Session{}, fmt.Errorf("no such session %q", id)
	}
	return s, nil
}

func (f *fakeSessions) List(ctx context.Context) ([]session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessions) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) Update(ctx context.Context, s session.Session) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Subscribe(ctx context.Context) <-chan pubsub.Event[session.Session] {
	ch := make(chan pubsub.Event[session.Session])
	close(ch)
	return ch
}

func TestDispatch_UnknownToolProducesErrorResultWithoutApproval(t *testing.T) {
	d := New(Config{Sessions: newFakeSessions(), Approvals: permission.NewCoordinator()})
	result := d.Dispatch(context.Background(), "sess-1", message.Call{ID: "c1", Name: "does_not_exist"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool")
}

func TestDispatch_MalformedShellArgsProducesErrorWithoutApprovalRequest(t *testing.T) {
	approvals := permission.NewCoordinator()
	sub := approvals.Subscribe(context.Background())

	d := New(Config{Sessions: newFakeSessions(), Approvals: approvals})
	result := d.Dispatch(context.Background(), "sess-1", message.Call{ID: "c1", Name: ShellToolName, Arguments: `{"command":"not-an-array"}`})

	require.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid arguments")

	select {
	case <-sub:
		t.Fatal("expected no approval_request for malformed arguments")
	default:
	}
}

func TestDispatch_ShellUnderFullAutoRunsWithoutApproval(t *testing.T) {
	sess := session.Session{ID: "sess-1", ApprovalPolicy: session.PolicyFullAuto}
	d := New(Config{Sessions: newFakeSessions(sess), Approvals: permission.NewCoordinator(), WorkspaceRoot: t.TempDir()})

	result := d.Dispatch(context.Background(), "sess-1", message.Call{
		ID: "c1", Name: ShellToolName, Arguments: `{"command":["echo","hi"]}`,
	})
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "hi")
}

func TestDispatch_ShellUnderSuggestWaitsForApprovalAndHonorsDenial(t *testing.T) {
	sess := session.Session{ID: "sess-1", ApprovalPolicy: session.PolicySuggest}
	approvals := permission.NewCoordinator()
	d := New(Config{Sessions: newFakeSessions(sess), Approvals: approvals, WorkspaceRoot: t.TempDir()})

	reqs := approvals.Subscribe(context.Background())
	done := make(chan message.Result, 1)
	go func() {
		done <- d.Dispatch(context.Background(), "sess-1", message.Call{
			ID: "c1", Name: ShellToolName, Arguments: `{"command":["echo","hi"]}`,
		})
	}()

	evt := <-reqs
	require.NoError(t, approvals.Resolve(evt.Payload.ID, permission.ResolutionDenyContinue))

	result := <-done
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "denied")
}

func TestDispatch_ReadChunkNeverRequiresApprovalEvenUnderSuggest(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "one\ntwo\nthree\n")

	sess := session.Session{ID: "sess-1", ApprovalPolicy: session.PolicySuggest}
	approvals := permission.NewCoordinator()
	d := New(Config{Sessions: newFakeSessions(sess), Approvals: approvals, WorkspaceRoot: dir})

	sub := approvals.Subscribe(context.Background())
	result := d.Dispatch(context.Background(), "sess-1", message.Call{
		ID: "c1", Name: ShellToolName, Arguments: `{"command":["read_chunk","a.txt","1","2"]}`,
	})

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "1\tone")

	select {
	case <-sub:
		t.Fatal("expected no approval_request for read_chunk")
	default:
	}
}

func TestDispatch_ApplyPatchUnderAutoEditBypassesApprovalWhenWritable(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "one\ntwo\nthree\n")

	sess := session.Session{ID: "sess-1", ApprovalPolicy: session.PolicyAutoEdit}
	approvals := permission.NewCoordinator()
	d := New(Config{Sessions: newFakeSessions(sess), Approvals: approvals, WorkspaceRoot: dir})

	sub := approvals.Subscribe(context.Background())
	patchArgs := fmt.Sprintf(`{"command":["apply_patch",%q]}`, sampleDiff)
	result := d.Dispatch(context.Background(), "sess-1", message.Call{ID: "c1", Name: ShellToolName, Arguments: patchArgs})

	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, "a.txt: +1 -1")

	select {
	case <-sub:
		t.Fatal("expected apply_patch to auto-approve under auto-edit for a writable path")
	default:
	}
}

func TestDispatch_TodoToolsRoundTripThroughJSONArguments(t *testing.T) {
	sess := session.Session{ID: "sess-1"}
	d := New(Config{Sessions: newFakeSessions(sess)})
	ctx := context.Background()

	addResult := d.Dispatch(ctx, "sess-1", message.Call{
		ID: "c1", Name: AddTodoToolName, Arguments: `{"task_description":"ship it"}`,
	})
	require.False(t, addResult.IsError)

	showResult := d.Dispatch(ctx, "sess-1", message.Call{ID: "c2", Name: ShowTodosToolName, Arguments: `{}`})
	require.False(t, showResult.IsError)
	assert.Contains(t, showResult.Content, "ship it")
}
