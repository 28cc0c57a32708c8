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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/provider"
)

// maxToolRounds bounds how many times one Run call will re-invoke the
// provider after dispatching tool calls, guarding against a model that
// never stops asking for tools. Grounded on the teacher pack's own
// round-limit convention (MaxToolRoundsPerInput in the agent-loop
// reference implementations) rather than invented here.
const maxToolRounds = 25

// Run drives one turn: it appends input to the transcript, then loops
// opening a streaming provider response, dispatching every tool the model
// asks for, and awaiting their results. A finish reason that signals
// pending tool use (isToolContinuation) rebuilds the request — now
// including the just-appended ToolResults — and starts another round
// without returning to the caller; the turn only ends, via finishTurn,
// once a round produces a finish reason that is not itself a tool
// continuation, or the round cap is hit.
//
// Implementers of this algorithm have historically raced content_block_stop
// against message_stop: a tool result could still be executing when the
// turn declared itself finished. The wg below is the fix — no round's
// request is rebuilt, and the turn-end hook does not run, until every
// tool-dispatch goroutine that round started has recorded its result.
func (o *Orchestrator) Run(ctx context.Context, input []message.Item) error {
	if o.terminated.Load() {
		return ErrTerminated
	}

	gen := o.generation.Add(1)
	o.setLoading(true)

	o.mu.Lock()
	o.transcript = append(o.transcript, input...)
	o.fragment.Reset()
	o.mu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.streamCancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		if o.streamCancel != nil {
			o.streamCancel()
			o.streamCancel = nil
		}
		o.mu.Unlock()
		cancel()
	}()

	var finishReason string
	var usage provider.Usage

	for round := 0; round < maxToolRounds; round++ {
		req := o.buildRequest()
		events, err := o.provider.Stream(turnCtx, req)
		if err != nil {
			o.handleStreamFailure(gen, err)
			return fmt.Errorf("orchestrator: open provider stream: %w", err)
		}

		var wg sync.WaitGroup
		var streamErr error
		finishReason = ""

		for ev := range events {
			if o.stale(gen) {
				continue
			}
			switch ev.Kind {
			case provider.EventTextDelta:
				o.handleTextDelta(gen, ev.Delta)
			case provider.EventReasoningDelta:
				o.handleReasoningDelta(gen, ev.Delta)
			case provider.EventToolUseCompleted:
				o.dispatchTool(turnCtx, gen, ev.ToolCall, &wg)
			case provider.EventFullMessageComplete:
				finishReason = ev.FinishReason
				usage = ev.Usage
			case provider.EventStreamEnd:
				if finishReason == "" {
					finishReason = ev.FinishReason
				}
				usage = ev.Usage
			case provider.EventStreamError:
				streamErr = ev.Err
			}
		}

		// The next round's request must not be built, and the turn must
		// not end, until every tool this round spawned has produced and
		// recorded its result.
		wg.Wait()

		if o.stale(gen) {
			return nil
		}

		if streamErr != nil {
			o.handleStreamFailure(gen, streamErr)
			return nil
		}

		if !isToolContinuation(finishReason) {
			break
		}

		if round == maxToolRounds-1 {
			log.Warn("orchestrator: max tool rounds reached, ending turn",
				zap.String("session_id", o.sessionID), zap.Int("rounds", round+1))
		}
	}

	o.finishTurn(gen, finishReason, usage)
	return nil
}

// isToolContinuation reports whether a finish reason signals the model
// wants the turn to continue with tool results rather than ending it —
// Anthropic's Messages API stop_reason "tool_use", and OpenAI's Chat
// Completions finish_reason "tool_calls".
func isToolContinuation(reason string) bool {
	return reason == "tool_use" || reason == "tool_calls"
}

// stale reports whether gen no longer matches the current generation,
// meaning the turn it was captured for has been canceled or superseded.
func (o *Orchestrator) stale(gen uint64) bool {
	return o.generation.Load() != gen
}

func (o *Orchestrator) buildRequest() provider.Request {
	o.mu.Lock()
	messages := toProviderMessages(o.transcript)
	o.mu.Unlock()
	return provider.Request{
		Model:     o.provider.Model(),
		System:    o.instructions,
		Messages:  messages,
		Tools:     o.tools,
		MaxTokens: o.maxTokens,
	}
}

func (o *Orchestrator) handleTextDelta(gen uint64, delta string) {
	if o.stale(gen) || delta == "" {
		return
	}
	o.mu.Lock()
	o.fragment.WriteString(delta)
	o.mu.Unlock()

	frag := message.NewAssistantMessage(o.sessionID, o.provider.Name(), o.provider.Model())
	frag.Text = delta
	o.emit(Frame{
		ID:          uuid.NewString(),
		Type:        FrameResponseItem,
		Payload:     ResponseItemPayload{Item: frag, ContentPartKind: "output_text"},
		SkipJournal: true,
	})
}

// handleReasoningDelta forwards reasoning fragments to the Transport as
// they stream in. Reasoning is provider-owned scratch space: the turn
// algorithm names only the text-delta, tool-use, full-message, and
// stream-end events as transcript-affecting, so reasoning is surfaced
// live and not persisted as its own transcript item.
func (o *Orchestrator) handleReasoningDelta(gen uint64, delta string) {
	if o.stale(gen) || delta == "" {
		return
	}
	frag := message.NewReasoning(o.sessionID)
	frag.Reasoning.Thinking = delta
	o.emit(Frame{
		ID:          uuid.NewString(),
		Type:        FrameResponseItem,
		Payload:     ResponseItemPayload{Item: frag, ContentPartKind: "reasoning_delta"},
		SkipJournal: true,
	})
}

func (o *Orchestrator) dispatchTool(ctx context.Context, gen uint64, tc provider.ToolCallRequest, wg *sync.WaitGroup) {
	if o.stale(gen) {
		return
	}

	callItem := message.NewToolCall(o.sessionID, tc.ID, tc.Name, tc.Arguments)
	o.mu.Lock()
	o.transcript = append(o.transcript, callItem)
	o.mu.Unlock()
	o.emit(Frame{ID: uuid.NewString(), Type: FrameResponseItem, Payload: ResponseItemPayload{Item: callItem}})

	wg.Add(1)
	go func() {
		defer wg.Done()

		call := message.Call{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
		result := o.dispatcher.Dispatch(ctx, o.sessionID, call)

		if o.stale(gen) {
			return
		}

		resultItem := message.NewToolResult(o.sessionID, tc.ID, result.Content, result.IsError)
		resultItem.Result.Metadata = result.Metadata
		o.mu.Lock()
		o.transcript = append(o.transcript, resultItem)
		o.mu.Unlock()
		o.emit(Frame{ID: uuid.NewString(), Type: FrameResponseItem, Payload: ResponseItemPayload{Item: resultItem}})
	}()
}

// handleStreamFailure records a provider stream failure as a SystemNotice
// rather than an assistant message — it must never be journaled as if the
// model had said it — and ends the turn.
func (o *Orchestrator) handleStreamFailure(gen uint64, err error) {
	if o.stale(gen) {
		return
	}
	notice := message.NewSystemNotice(o.sessionID, err.Error(), message.SeverityError)
	o.mu.Lock()
	o.transcript = append(o.transcript, notice)
	o.mu.Unlock()

	o.emit(Frame{ID: uuid.NewString(), Type: FrameResponseItem, Payload: ResponseItemPayload{Item: notice}})
	o.emitError(err.Error())
	o.setLoading(false)
}

// finishTurn runs the turn-end hook: coalesce the streamed fragment into
// one durable AssistantMessage, emit agent_finished and a context_info
// snapshot, run compaction if the configured strategy calls for it, and
// signal loading=false.
func (o *Orchestrator) finishTurn(gen uint64, finishReason string, usage provider.Usage) {
	o.mu.Lock()
	text := o.fragment.String()
	o.fragment.Reset()
	o.mu.Unlock()

	responseID := uuid.NewString()

	if text != "" {
		final := message.NewAssistantMessage(o.sessionID, o.provider.Name(), o.provider.Model())
		final.ID = responseID
		final.Text = text
		final.Finish = &message.Finish{Reason: toFinishReason(finishReason), Time: time.Now()}

		o.mu.Lock()
		o.transcript = append(o.transcript, final)
		o.mu.Unlock()

		o.emit(Frame{ID: uuid.NewString(), Type: FrameResponseItem, Payload: ResponseItemPayload{Item: final, ContentPartKind: "output_text"}})
	}

	o.emit(Frame{ID: uuid.NewString(), Type: FrameAgentFinished, Payload: AgentFinishedPayload{ResponseID: responseID}})

	o.emitContextInfo()
	o.maybeCompact(gen)

	o.setLoading(false)
	_ = usage
}

func toFinishReason(reason string) message.FinishReason {
	switch reason {
	case "max_tokens":
		return message.FinishMaxTokens
	case "canceled":
		return message.FinishCanceled
	case "error":
		return message.FinishError
	default:
		return message.FinishEndTurn
	}
}

// ContextInfo emits a context_info frame for the current transcript,
// used both at turn end and on an explicit get_context_info request.
func (o *Orchestrator) ContextInfo() {
	o.emitContextInfo()
}

func (o *Orchestrator) emitContextInfo() {
	if o.contextMgr == nil {
		return
	}
	o.mu.Lock()
	snapshot := append([]message.Item(nil), o.transcript...)
	o.mu.Unlock()

	view := o.contextMgr.View(serializeTranscript(snapshot), len(snapshot))
	o.emit(Frame{ID: uuid.NewString(), Type: FrameContextInfo, Payload: ContextInfoPayload{
		TokenCount:       view.TokenCount,
		UsagePercent:     view.UsagePercent,
		TranscriptLength: view.TranscriptLength,
		MaxTokens:        view.MaxTokens,
		Strategy:         string(view.StrategyName),
	}})
}

// maybeCompact runs the compaction procedure when the configured strategy
// calls for it. It runs only once the turn has fully ended — no turn is
// ever in flight while this executes, satisfying the "no turn in flight
// during compaction" serialization rule without a separate lock, since
// Run does not return control to the caller until finishTurn completes.
func (o *Orchestrator) maybeCompact(gen uint64) {
	if o.contextMgr == nil || o.stale(gen) {
		return
	}

	o.mu.Lock()
	snapshot := append([]message.Item(nil), o.transcript...)
	o.mu.Unlock()

	view := o.contextMgr.View(serializeTranscript(snapshot), len(snapshot))
	if !o.contextMgr.ShouldCompact(view) {
		return
	}

	if err := o.Compact(context.Background()); err != nil {
		log.Error("orchestrator: auto-compaction failed", zap.String("session_id", o.sessionID), zap.Error(err))
	}
}

// Compact runs the Context Manager's compaction procedure against the
// current transcript: it replaces the transcript with a single synthetic
// AssistantMessage carrying the summary and emits context_compacted. It
// may be invoked either automatically (maybeCompact, Threshold strategy)
// or directly by the Transport in response to a manual_compact request.
func (o *Orchestrator) Compact(ctx context.Context) error {
	if o.contextMgr == nil {
		return fmt.Errorf("orchestrator: no context manager configured")
	}

	o.mu.Lock()
	snapshot := append([]message.Item(nil), o.transcript...)
	o.mu.Unlock()

	result, err := o.contextMgr.Compact(ctx, serializeTranscript(snapshot), len(snapshot))
	if err != nil {
		return err
	}

	seed := message.NewAssistantMessage(o.sessionID, o.provider.Name(), o.provider.Model())
	seed.Text = result.Summary
	seed.Finish = &message.Finish{Reason: message.FinishEndTurn, Time: time.Now()}

	o.mu.Lock()
	o.transcript = []message.Item{seed}
	o.mu.Unlock()

	o.emit(Frame{ID: uuid.NewString(), Type: FrameContextCompacted, Payload: ContextCompactedPayload{
		OldTokenCount: result.OldTokenCount,
		NewTokenCount: result.NewTokenCount,
		ReductionPct:  result.ReductionPct,
		Strategy:      string(result.Strategy),
	}})
	return nil
}
