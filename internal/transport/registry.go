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
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/contextmgr"
	"github.com/weaveloop/weave/internal/journal"
	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/orchestrator"
	"github.com/weaveloop/weave/internal/permission"
	"github.com/weaveloop/weave/internal/provider"
	"github.com/weaveloop/weave/internal/session"
	"github.com/weaveloop/weave/internal/tools"
)

// Registry owns the live sessionHandle for every session currently
// connected, and lazily builds one — replaying its journal first — the
// first time a request for that session id arrives.
type Registry struct {
	sessions   session.Service
	approvals  permission.Service
	dispatcher orchestrator.Dispatcher
	providerOf func(session.Session) (provider.Provider, error)
	journalDir string
	maxTokens  int
	sseServer  *sse.Server

	mu      sync.Mutex
	handles map[string]*sessionHandle
}

// Config configures a Registry.
type Config struct {
	Sessions   session.Service
	Approvals  permission.Service
	Dispatcher orchestrator.Dispatcher
	// ProviderOf resolves the LLM backend a session's Model/Provider
	// fields select; it is a func rather than a fixed value because
	// different sessions may target different providers.
	ProviderOf func(session.Session) (provider.Provider, error)
	JournalDir string
	MaxTokens  int
}

// NewRegistry constructs a Registry. Its SSE server is created with
// AutoStream disabled: a stream only exists once a session handle has
// been built, so an unknown session id reaching the SSE endpoint 404s
// instead of silently opening an unbacked stream.
func NewRegistry(cfg Config) *Registry {
	sseServer := sse.New()
	sseServer.AutoStream = false
	sseServer.AutoReplay = false

	return &Registry{
		sessions:   cfg.Sessions,
		approvals:  cfg.Approvals,
		dispatcher: cfg.Dispatcher,
		providerOf: cfg.ProviderOf,
		journalDir: cfg.JournalDir,
		maxTokens:  cfg.MaxTokens,
		sseServer:  sseServer,
		handles:    make(map[string]*sessionHandle),
	}
}

// toolCatalog reports the set of tools visible to the provider for the
// session being built. r.dispatcher is an orchestrator.Dispatcher, which
// knows nothing about MCP; a dispatcher that also exposes a Catalog
// method (tools.Dispatcher does) is asked for its merged built-in+MCP
// list instead of the static built-in one.
func (r *Registry) toolCatalog(ctx context.Context) []provider.Tool {
	if cp, ok := r.dispatcher.(interface {
		Catalog(context.Context) []provider.Tool
	}); ok {
		return cp.Catalog(ctx)
	}
	return tools.Catalog()
}

// Get returns the live handle for sessionID, building and resuming it
// from its journal on first access.
func (r *Registry) Get(ctx context.Context, sessionID string) (*sessionHandle, error) {
	r.mu.Lock()
	if h, ok := r.handles[sessionID]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transport: unknown session %q: %w", sessionID, err)
	}

	prov, err := r.providerOf(sess)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve provider for %q: %w", sessionID, err)
	}

	jr, err := journal.Open(r.journalDir, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transport: open journal for %q: %w", sessionID, err)
	}

	priorItems, err := replayTranscript(r.journalDir, sessionID)
	if err != nil {
		jr.Close()
		return nil, err
	}

	ctxMgr := contextmgr.New(contextmgr.Config{
		Strategy:   contextmgr.Strategy(sess.ContextStrategy),
		Threshold:  sess.CompactThreshold,
		Limits:     contextmgr.Resolve(sess.Provider, sess.Model, r.maxTokens, 0),
		Summarizer: summarizerFor(prov),
		SessionID:  sessionID,
	})

	orch := orchestrator.New(orchestrator.Config{
		SessionID:  sessionID,
		Provider:   prov,
		Dispatcher: r.dispatcher,
		ContextMgr: ctxMgr,
		Journal:    jr,
		Tools:      r.toolCatalog(ctx),
		MaxTokens:  r.maxTokens,
	})
	if len(priorItems) > 0 {
		orch.InitializeTranscript(priorItems)
	}

	if err := jr.RecordConnected(); err != nil {
		log.Error("transport: journal session_connected", zap.String("session_id", sessionID), zap.Error(err))
	}

	r.sseServer.CreateStream(sessionID)

	feedCtx, cancel := context.WithCancel(context.Background())
	h := &sessionHandle{
		id:         sessionID,
		orch:       orch,
		approvals:  r.approvals,
		journal:    jr,
		cancelFeed: cancel,
	}

	r.mu.Lock()
	r.handles[sessionID] = h
	r.mu.Unlock()

	go h.run(feedCtx, r.sseServer)

	return h, nil
}

// Close tears down a session's live handle: it stops the fan-in
// goroutine, records session_ended, and closes the journal file. The
// session's durable state (its journal, its sessionstore row) is
// untouched, so a later Get resumes it exactly as Replay left it.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	h, ok := r.handles[sessionID]
	if ok {
		delete(r.handles, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	h.cancelFeed()
	r.sseServer.RemoveStream(sessionID)
	if err := h.journal.RecordEnded(); err != nil {
		log.Error("transport: journal session_ended", zap.String("session_id", sessionID), zap.Error(err))
	}
	return h.journal.Close()
}

func summarizerFor(prov provider.Provider) contextmgr.Summarizer {
	return func(ctx context.Context, serializedTranscript string) (string, error) {
		text, _, err := prov.Complete(ctx, provider.Request{
			Model:  prov.Model(),
			System: "Summarize the conversation so far, preserving every decision, open task, and fact the assistant will need to continue.",
			Messages: []provider.Message{
				{Role: "user", Text: serializedTranscript},
			},
		})
		return text, err
	}
}
