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
package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaveloop/weave/internal/contextmgr"
	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/provider"
)

// fakeProvider streams a fixed script of events. For tests that need the
// model to behave differently across a tool-continuation loop, rounds
// supplies one event batch per Stream call (the last batch repeats if
// Stream is called more times than rounds has entries); events is used
// instead for single-round tests.
type fakeProvider struct {
	name, model string
	events      []provider.StreamEvent
	rounds      [][]provider.StreamEvent

	mu        sync.Mutex
	callIndex int
	reqs      []provider.Request
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	batch := f.events
	if f.rounds != nil {
		f.mu.Lock()
		idx := f.callIndex
		if idx >= len(f.rounds) {
			idx = len(f.rounds) - 1
		}
		batch = f.rounds[idx]
		f.callIndex++
		f.mu.Unlock()
	}

	ch := make(chan provider.StreamEvent, len(batch))
	go func() {
		defer close(ch)
		for _, ev := range batch {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeProvider) Complete(ctx context.Context, req provider.Request) (string, provider.Usage, error) {
	return "summary", provider.Usage{}, nil
}

func (f *fakeProvider) requests() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.reqs...)
}

// slowDispatcher sleeps before returning a result, to exercise the
// turn-end-must-await-in-flight-tools fix.
type slowDispatcher struct {
	delay     time.Duration
	mu        sync.Mutex
	completed bool
}

func (d *slowDispatcher) Dispatch(ctx context.Context, sessionID string, call message.Call) message.Result {
	time.Sleep(d.delay)
	d.mu.Lock()
	d.completed = true
	d.mu.Unlock()
	return message.Result{ToolCallID: call.ID, Content: "ok"}
}

func (d *slowDispatcher) wasCompleted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

func newTestContextMgr(t *testing.T) *contextmgr.Manager {
	t.Helper()
	return contextmgr.New(contextmgr.Config{
		Strategy:  contextmgr.StrategyThreshold,
		Threshold: 0.8,
		Limits:    contextmgr.Limits{MaxContextTokens: 100000, ReservedOutputTokens: 1000},
		Summarizer: func(ctx context.Context, transcript string) (string, error) {
			return "summary", nil
		},
		SessionID: "test-session",
	})
}

func TestRun_BasicTurnEmitsResponseItemsAndAgentFinished(t *testing.T) {
	p := &fakeProvider{
		name:  "fake",
		model: "fake-model",
		events: []provider.StreamEvent{
			{Kind: provider.EventTextDelta, Delta: "Hello, "},
			{Kind: provider.EventTextDelta, Delta: "world."},
			{Kind: provider.EventFullMessageComplete, FinishReason: "end_turn"},
			{Kind: provider.EventStreamEnd, FinishReason: "end_turn"},
		},
	}
	o := New(Config{
		SessionID:  "sess-a",
		Provider:   p,
		Dispatcher: &slowDispatcher{},
		ContextMgr: newTestContextMgr(t),
	})

	sub, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch := o.Subscribe(sub)

	err := o.Run(context.Background(), []message.Item{message.NewUserMessage("sess-a", "hi")})
	require.NoError(t, err)

	var types []FrameType
	for len(types) < 5 {
		select {
		case evt := <-ch:
			types = append(types, evt.Payload.Type)
		case <-sub.Done():
			t.Fatalf("timed out, got %v", types)
		}
	}

	assert.Contains(t, types, FrameLoadingState)
	assert.Contains(t, types, FrameResponseItem)
	assert.Contains(t, types, FrameAgentFinished)
	assert.Contains(t, types, FrameContextInfo)

	transcript := o.Transcript()
	require.Len(t, transcript, 2) // user message + coalesced assistant message
	assert.Equal(t, message.KindUserMessage, transcript[0].Kind)
	assert.Equal(t, message.KindAssistantMessage, transcript[1].Kind)
	assert.Equal(t, "Hello, world.", transcript[1].Text)
}

func TestRun_AwaitsInFlightToolDispatchBeforeTurnEnd(t *testing.T) {
	p := &fakeProvider{
		name:  "fake",
		model: "fake-model",
		rounds: [][]provider.StreamEvent{
			{
				{Kind: provider.EventToolUseCompleted, ToolCall: provider.ToolCallRequest{ID: "call-1", Name: "shell", Arguments: `{"command":["echo","hi"]}`}},
				{Kind: provider.EventStreamEnd, FinishReason: "tool_use"},
			},
			{
				{Kind: provider.EventTextDelta, Delta: "it printed hi"},
				{Kind: provider.EventStreamEnd, FinishReason: "end_turn"},
			},
		},
	}
	dispatcher := &slowDispatcher{delay: 50 * time.Millisecond}
	o := New(Config{
		SessionID:  "sess-b",
		Provider:   p,
		Dispatcher: dispatcher,
		ContextMgr: newTestContextMgr(t),
	})

	err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	// By the time Run returns, the turn-end hook must already have run,
	// which is only correct if the slow tool dispatch had already
	// completed — this is precisely the race the WaitGroup closes.
	assert.True(t, dispatcher.wasCompleted())

	// The model must be re-invoked with the tool's result and allowed to
	// describe it before the turn ends — one coalesced assistant message
	// following the call/result pair, not a turn that ends mid-tool-use.
	transcript := o.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, message.KindToolCall, transcript[0].Kind)
	assert.Equal(t, message.KindToolResult, transcript[1].Kind)
	assert.Equal(t, "call-1", transcript[1].Result.ToolCallID)
	assert.Equal(t, message.KindAssistantMessage, transcript[2].Kind)
	assert.Equal(t, "it printed hi", transcript[2].Text)

	// The provider must be invoked once per round, and the second round's
	// request must carry the tool's result forward so the model can
	// actually react to it.
	reqs := p.requests()
	require.Len(t, reqs, 2)
	var sawToolResult bool
	for _, m := range reqs[1].Messages {
		if m.Role == "tool" && m.ToolCallID == "call-1" {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolResult, "second round's request must include call-1's tool result")
}

func TestRun_StreamErrorProducesSystemNoticeNotAssistantMessage(t *testing.T) {
	p := &fakeProvider{
		name:  "fake",
		model: "fake-model",
		events: []provider.StreamEvent{
			{Kind: provider.EventTextDelta, Delta: "partial"},
			{Kind: provider.EventStreamError, Err: assertErr("boom")},
		},
	}
	o := New(Config{
		SessionID:  "sess-c",
		Provider:   p,
		Dispatcher: &slowDispatcher{},
		ContextMgr: newTestContextMgr(t),
	})

	err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	transcript := o.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, message.KindSystemNotice, transcript[0].Kind)
	assert.Equal(t, message.SeverityError, transcript[0].Severity)
}

func TestRun_TerminatedOrchestratorRejectsRun(t *testing.T) {
	o := New(Config{SessionID: "sess-d", Provider: &fakeProvider{}, Dispatcher: &slowDispatcher{}})
	o.Terminate()
	err := o.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTerminated)
}

func TestCompact_ReplacesTranscriptWithSyntheticSummary(t *testing.T) {
	p := &fakeProvider{name: "fake", model: "fake-model"}
	o := New(Config{
		SessionID:  "sess-e",
		Provider:   p,
		Dispatcher: &slowDispatcher{},
		ContextMgr: newTestContextMgr(t),
	})
	o.InitializeTranscript([]message.Item{
		message.NewUserMessage("sess-e", "some long prior context"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch := o.Subscribe(ctx)

	require.NoError(t, o.Compact(context.Background()))

	var gotCompacted bool
	for i := 0; i < 1; i++ {
		select {
		case evt := <-ch:
			if evt.Payload.Type == FrameContextCompacted {
				gotCompacted = true
			}
		case <-ctx.Done():
		}
	}
	assert.True(t, gotCompacted)

	transcript := o.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, message.KindAssistantMessage, transcript[0].Kind)
	assert.Contains(t, transcript[0].Text, "Context Summary")
}

func TestRun_AutoTriggersCompactionWhenThresholdExceeded(t *testing.T) {
	p := &fakeProvider{
		name:  "fake",
		model: "fake-model",
		events: []provider.StreamEvent{
			{Kind: provider.EventTextDelta, Delta: "ok"},
			{Kind: provider.EventStreamEnd, FinishReason: "end_turn"},
		},
	}
	var summarizeCalls int
	cm := contextmgr.New(contextmgr.Config{
		Strategy:  contextmgr.StrategyThreshold,
		Threshold: 0.8,
		// A tiny budget so even this short transcript crosses 80% usage.
		Limits: contextmgr.Limits{MaxContextTokens: 20, ReservedOutputTokens: 2},
		Summarizer: func(ctx context.Context, transcript string) (string, error) {
			summarizeCalls++
			return "summary", nil
		},
		SessionID: "sess-f",
	})
	o := New(Config{SessionID: "sess-f", Provider: p, Dispatcher: &slowDispatcher{}, ContextMgr: cm})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch := o.Subscribe(ctx)

	require.NoError(t, o.Run(context.Background(), []message.Item{
		message.NewUserMessage("sess-f", "this is a long enough prior message to push token usage over the threshold"),
	}))

	var gotCompacted bool
	for !gotCompacted {
		select {
		case evt := <-ch:
			if evt.Payload.Type == FrameContextCompacted {
				gotCompacted = true
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for context_compacted frame")
		}
	}

	assert.Equal(t, 1, summarizeCalls)
	transcript := o.Transcript()
	require.Len(t, transcript, 1)
	assert.Contains(t, transcript[0].Text, "Context Summary")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
