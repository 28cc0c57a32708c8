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

// Package message defines the conversation item types that make up a
// session transcript: the atomic, append-only units an orchestrator turn
// produces and a journal persists.
package message

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/weaveloop/weave/internal/pubsub"
)

// Role is the originator of a conversation item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// FinishReason explains why an assistant turn stopped producing output.
type FinishReason string

const (
	FinishEndTurn   FinishReason = "end_turn"
	FinishCanceled  FinishReason = "canceled"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishError     FinishReason = "error"
)

// Kind selects which ConversationItem variant an Item carries. Exactly one
// of Item's payload fields is meaningful for a given Kind; the others are
// left zero.
type Kind string

const (
	KindUserMessage      Kind = "user_message"
	KindAssistantMessage Kind = "assistant_message"
	KindReasoning        Kind = "reasoning"
	KindToolCall         Kind = "tool_call"
	KindToolResult       Kind = "tool_result"
	KindSystemNotice     Kind = "system_notice"
)

// Severity classifies a SystemNotice item.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Finish carries the terminal state of an AssistantMessage.
type Finish struct {
	Reason FinishReason
	Detail string
	Time   time.Time
}

// Reasoning is the payload of a Reasoning item: a model's visible
// chain-of-thought for one turn.
type Reasoning struct {
	Thinking  string
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns how long the reasoning ran, or zero if still open.
func (r Reasoning) Duration() time.Duration {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Call is the payload of a ToolCall item: one tool invocation requested
// by the model.
type Call struct {
	ID        string
	Name      string
	Arguments string         // raw JSON exactly as the provider sent it
	Input     map[string]any // parsed form, populated once decoded
	Finished  bool
}

// Result is the payload of a ToolResult item: the outcome of executing a
// Call.
type Result struct {
	ToolCallID string
	Content    string
	IsError    bool
	Metadata   map[string]any
}

// Item is one entry in a session transcript — a ConversationItem.
type Item struct {
	ID        string
	SessionID string
	Kind      Kind
	CreatedAt time.Time

	// Text holds the body of UserMessage, AssistantMessage, and
	// SystemNotice items.
	Text string

	// Provider/Model/Finish are set on AssistantMessage items only.
	Provider string
	Model    string
	Finish   *Finish

	Reasoning *Reasoning
	Call      *Call
	Result    *Result

	// Severity is set on SystemNotice items only.
	Severity Severity
}

func newItem(sessionID string, kind Kind) Item {
	return Item{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage builds a UserMessage item.
func NewUserMessage(sessionID, text string) Item {
	it := newItem(sessionID, KindUserMessage)
	it.Text = text
	return it
}

// NewAssistantMessage builds an AssistantMessage item with empty Text;
// the caller sets Text.
func NewAssistantMessage(sessionID, provider, model string) Item {
	it := newItem(sessionID, KindAssistantMessage)
	it.Provider = provider
	it.Model = model
	return it
}

// NewReasoning builds a Reasoning item.
func NewReasoning(sessionID string) Item {
	it := newItem(sessionID, KindReasoning)
	it.Reasoning = &Reasoning{StartedAt: time.Now()}
	return it
}

// NewToolCall builds a ToolCall item.
func NewToolCall(sessionID, id, name, arguments string) Item {
	it := newItem(sessionID, KindToolCall)
	it.Call = &Call{ID: id, Name: name, Arguments: arguments}
	return it
}

// NewToolResult builds a ToolResult item.
func NewToolResult(sessionID, toolCallID, content string, isError bool) Item {
	it := newItem(sessionID, KindToolResult)
	it.Result = &Result{ToolCallID: toolCallID, Content: content, IsError: isError}
	return it
}

// NewSystemNotice builds a SystemNotice item, used to surface transport or
// provider errors into the transcript without pretending they came from
// the assistant.
func NewSystemNotice(sessionID, text string, severity Severity) Item {
	it := newItem(sessionID, KindSystemNotice)
	it.Text = text
	it.Severity = severity
	return it
}

// AppendFragment appends streamed text to an AssistantMessage item. It is
// the only mutation a live item undergoes; once Finish is set the item is
// immutable.
func (i *Item) AppendFragment(fragment string) {
	i.Text += fragment
}

// MarkFinished sets the terminal Finish state of an AssistantMessage item.
func (i *Item) MarkFinished(reason FinishReason, detail string) {
	i.Finish = &Finish{Reason: reason, Detail: detail, Time: time.Now()}
}

// IsFinished reports whether an AssistantMessage item has reached a
// terminal Finish state.
func (i Item) IsFinished() bool {
	return i.Finish != nil
}

// Role returns the conversational role a ConversationItem presents as to
// a provider adapter.
func (i Item) Role() Role {
	switch i.Kind {
	case KindUserMessage:
		return RoleUser
	case KindAssistantMessage, KindReasoning, KindToolCall:
		return RoleAssistant
	case KindToolResult:
		return RoleTool
	case KindSystemNotice:
		return RoleSystem
	default:
		return RoleSystem
	}
}

// Service is the read/subscribe surface a transcript store exposes to
// callers outside the orchestrator (resumption and inspection tooling);
// the turn loop itself owns its transcript directly and does not go
// through this interface.
type Service interface {
	List(ctx context.Context, sessionID string) ([]Item, error)
	Subscribe(ctx context.Context) <-chan pubsub.Event[Item]
}
