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

// Package orchestrator implements the Agent Orchestrator: the per-session
// turn loop that drives a streaming provider call, dispatches tool
// invocations, coalesces assistant-message fragments for the journal, and
// tracks the context window.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/weaveloop/weave/internal/contextmgr"
	"github.com/weaveloop/weave/internal/journal"
	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/provider"
	"github.com/weaveloop/weave/internal/pubsub"

	"go.uber.org/zap"
)

// Dispatcher executes one tool call to completion, including any
// approval handshake the effective policy requires, and always returns
// a message.Result (is_error=true on any failure) so the ToolCall/
// ToolResult pairing invariant holds even when the tool itself errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, call message.Call) message.Result
}

// ErrTerminated is returned by Run once the Orchestrator has been
// Terminate'd; the instance is thereafter permanently unusable.
var ErrTerminated = fmt.Errorf("orchestrator: terminated")

// Config configures a new Orchestrator.
type Config struct {
	SessionID    string
	Instructions string
	Provider     provider.Provider
	Dispatcher   Dispatcher
	ContextMgr   *contextmgr.Manager
	Journal      *journal.Journal
	Tools        []provider.Tool
	MaxTokens    int
}

// Orchestrator drives one session's turns. It is safe for concurrent
// use; §5's single-logical-lock-per-session requirement is implemented
// with mu guarding the transcript, fragment buffer, and stream-cancel
// handle.
type Orchestrator struct {
	sessionID    string
	instructions string
	maxTokens    int

	provider   provider.Provider
	dispatcher Dispatcher
	contextMgr *contextmgr.Manager
	journal    *journal.Journal
	tools      []provider.Tool

	generation atomic.Uint64
	terminated atomic.Bool

	mu           sync.Mutex
	transcript   []message.Item
	fragment     strings.Builder
	streamCancel context.CancelFunc
	compacting   bool

	outbound *pubsub.Broker[Frame]
}

// New constructs an Orchestrator for one session.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		sessionID:    cfg.SessionID,
		instructions: cfg.Instructions,
		maxTokens:    cfg.MaxTokens,
		provider:     cfg.Provider,
		dispatcher:   cfg.Dispatcher,
		contextMgr:   cfg.ContextMgr,
		journal:      cfg.Journal,
		tools:        cfg.Tools,
		outbound:     pubsub.NewBroker[Frame](),
	}
}

// Subscribe returns a channel of outbound Frames — the Transport Adapter
// drains this to push frames to the client. emit has already journaled
// every frame except Frame.SkipJournal entries before publishing it.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan pubsub.Event[Frame] {
	return o.outbound.Subscribe(ctx)
}

// InitializeTranscript bulk-seeds the transcript without issuing any
// provider call, used exclusively by session resume.
func (o *Orchestrator) InitializeTranscript(items []message.Item) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transcript = append([]message.Item(nil), items...)
}

// Transcript returns a snapshot of the current transcript.
func (o *Orchestrator) Transcript() []message.Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]message.Item(nil), o.transcript...)
}

// Cancel bumps the generation counter so in-flight callbacks silently
// drop their effects, and aborts the current provider stream if one is
// open. Safe to call multiple times and from any goroutine.
func (o *Orchestrator) Cancel() {
	o.generation.Add(1)
	o.mu.Lock()
	cancel := o.streamCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Terminate cancels the current turn and marks the Orchestrator
// permanently unusable; subsequent Run calls return ErrTerminated.
func (o *Orchestrator) Terminate() {
	o.Cancel()
	o.terminated.Store(true)
}

func (o *Orchestrator) emit(frame Frame) {
	if !frame.SkipJournal && o.journal != nil {
		if err := o.journal.RecordSent(frame); err != nil {
			log.Error("orchestrator: journal outbound frame", zap.String("session_id", o.sessionID), zap.Error(err))
		}
	}
	o.outbound.Publish(pubsub.NewCreatedEvent(frame))
}

func (o *Orchestrator) setLoading(loading bool) {
	o.emit(Frame{ID: uuid.NewString(), Type: FrameLoadingState, Payload: LoadingStatePayload{Loading: loading}})
}

func (o *Orchestrator) emitError(message string) {
	o.emit(Frame{ID: uuid.NewString(), Type: FrameError, Payload: ErrorPayload{Message: message}})
}
