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
package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestApproval_ApproveResolvesCaller(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub := c.Subscribe(ctx)

	resCh := make(chan Resolution, 1)
	go func() {
		res, err := c.RequestApproval(ctx, Request{SessionID: "s1", ToolName: "shell", ToolCallID: "tc1"})
		require.NoError(t, err)
		resCh <- res
	}()

	evt := <-sub
	require.NoError(t, c.Resolve(evt.Payload.ID, ResolutionApprove))

	assert.Equal(t, ResolutionApprove, <-resCh)
}

func TestRequestApproval_SkipRequestsBypassesCoordinator(t *testing.T) {
	c := NewCoordinator()
	c.SetSkipRequests("s1", true)

	res, err := c.RequestApproval(context.Background(), Request{SessionID: "s1", ToolName: "shell"})
	require.NoError(t, err)
	assert.Equal(t, ResolutionApprove, res)
}

func TestRequestApproval_AlwaysElevatesFutureCallsToSameTool(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub := c.Subscribe(ctx)

	resCh := make(chan Resolution, 1)
	go func() {
		res, _ := c.RequestApproval(ctx, Request{SessionID: "s1", ToolName: "shell", ToolCallID: "tc1"})
		resCh <- res
	}()
	evt := <-sub
	require.NoError(t, c.Resolve(evt.Payload.ID, ResolutionAlways))
	require.Equal(t, ResolutionApprove, <-resCh)

	// A second call for the same tool must not publish a new request.
	res2, err := c.RequestApproval(ctx, Request{SessionID: "s1", ToolName: "shell", ToolCallID: "tc2"})
	require.NoError(t, err)
	assert.Equal(t, ResolutionApprove, res2)
}

func TestRequestApproval_SerializesOneSlotPerSession(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub := c.Subscribe(ctx)

	results := make(chan Resolution, 2)
	go func() {
		res, _ := c.RequestApproval(ctx, Request{SessionID: "s1", ToolName: "a", ToolCallID: "tc1"})
		results <- res
	}()
	first := <-sub

	go func() {
		res, _ := c.RequestApproval(ctx, Request{SessionID: "s1", ToolName: "b", ToolCallID: "tc2"})
		results <- res
	}()

	// The second request must not surface until the first is resolved.
	select {
	case <-sub:
		t.Fatal("second request published before the first was resolved")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, c.Resolve(first.Payload.ID, ResolutionDenyContinue))
	assert.Equal(t, ResolutionDenyContinue, <-results)

	second := <-sub
	require.NoError(t, c.Resolve(second.Payload.ID, ResolutionApprove))
	assert.Equal(t, ResolutionApprove, <-results)
}

func TestExplain_DoesNotResolveOriginalRequest(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub := c.Subscribe(ctx)
	explains := c.SubscribeExplanations(ctx)

	resCh := make(chan Resolution, 1)
	go func() {
		res, _ := c.RequestApproval(ctx, Request{SessionID: "s1", ToolName: "shell", ToolCallID: "tc1"})
		resCh <- res
	}()
	evt := <-sub

	require.NoError(t, c.Explain(evt.Payload.ID, "why do you need shell access?"))
	explainEvt := <-explains
	assert.Equal(t, evt.Payload.ID, explainEvt.Payload.RequestID)

	select {
	case <-resCh:
		t.Fatal("original request resolved during explanation")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, c.ProvideExplanation(evt.Payload.ID, "it runs the build"))
	require.NoError(t, c.Resolve(evt.Payload.ID, ResolutionApprove))
	assert.Equal(t, ResolutionApprove, <-resCh)
}
