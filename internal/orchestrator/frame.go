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

import "github.com/weaveloop/weave/internal/message"

// FrameType names an outbound Transport frame's payload shape.
type FrameType string

const (
	FrameResponseItem     FrameType = "response_item"
	FrameLoadingState     FrameType = "loading_state"
	FrameAgentFinished    FrameType = "agent_finished"
	FrameContextInfo      FrameType = "context_info"
	FrameContextCompacted FrameType = "context_compacted"
	FrameError            FrameType = "error"
)

// Frame is one server-to-client message, framed the way the Transport
// Adapter puts it on the wire ({id, type, payload}). SkipJournal marks
// the streaming assistant-message fragments that are deliberately not
// written to the session journal — only the coalesced message produced
// at turn end is durable.
type Frame struct {
	ID          string    `json:"id"`
	Type        FrameType `json:"type"`
	Payload     any       `json:"payload,omitempty"`
	SkipJournal bool      `json:"-"`
}

// LoadingStatePayload is the loading_state frame body.
type LoadingStatePayload struct {
	Loading bool `json:"loading"`
}

// AgentFinishedPayload is the agent_finished frame body.
type AgentFinishedPayload struct {
	ResponseID string `json:"responseId"`
}

// ContextInfoPayload is the context_info frame body.
type ContextInfoPayload struct {
	TokenCount       int     `json:"tokenCount"`
	UsagePercent     float64 `json:"usagePercent"`
	TranscriptLength int     `json:"transcriptLength"`
	MaxTokens        int     `json:"maxTokens"`
	Strategy         string  `json:"strategy"`
}

// ContextCompactedPayload is the context_compacted frame body.
type ContextCompactedPayload struct {
	OldTokenCount  int     `json:"oldTokenCount"`
	NewTokenCount  int     `json:"newTokenCount"`
	ReductionPct   float64 `json:"reductionPercent"`
	Strategy       string  `json:"strategy"`
}

// ErrorPayload is the error frame body.
type ErrorPayload struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ResponseItemPayload wraps a ConversationItem as a response_item frame
// body. ContentPartKind distinguishes a streaming fragment
// ("output_text", live) from the rest of the tagged-union variants,
// mirroring the wire contract's "content-part kind" note for assistant
// messages.
type ResponseItemPayload struct {
	Item            message.Item `json:"item"`
	ContentPartKind string       `json:"contentPartKind,omitempty"`
}
