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

// Package transport exposes one session's Agent Orchestrator over a
// framed-JSON wire: client frames arrive as newline-delimited JSON POST
// bodies, server frames publish over a per-session SSE stream. Frame
// shape and the normative message-type list are fixed by the protocol;
// this package only adapts them onto net/http.
package transport

import (
	"encoding/json"

	"github.com/weaveloop/weave/internal/orchestrator"
	"github.com/weaveloop/weave/internal/permission"
)

// ClientFrame is one client->server message.
type ClientFrame struct {
	ID      string          `json:"id"`
	Type    ClientFrameType `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientFrameType enumerates the complete client->server message list.
type ClientFrameType string

const (
	ClientUserInput        ClientFrameType = "user_input"
	ClientApprovalResponse ClientFrameType = "approval_response"
	ClientGetContextInfo   ClientFrameType = "get_context_info"
	ClientManualCompact    ClientFrameType = "manual_compact"
)

// UserInputPayload is the user_input frame's payload.
type UserInputPayload struct {
	Input []InputItem `json:"input"`
}

// InputItem is one ConversationInputItem; content-part kind is always
// input_text for user-authored frames.
type InputItem struct {
	Text string `json:"text"`
}

// ApprovalResponsePayload is the approval_response frame's payload.
type ApprovalResponsePayload struct {
	Review            string `json:"review"` // yes|no-exit|no-continue|always|explain
	CustomDenyMessage string `json:"customDenyMessage,omitempty"`
	Question          string `json:"question,omitempty"` // populated when review == "explain"
}

// FrameApprovalRequest is the one outbound frame type this package adds
// to orchestrator.FrameType: an approval_request originates from the
// Approval Coordinator, not the Orchestrator, so it has no constant of
// its own in that package.
const FrameApprovalRequest orchestrator.FrameType = "approval_request"

// ApprovalRequestPayload is the approval_request frame's payload.
type ApprovalRequestPayload struct {
	Command    []string        `json:"command"`
	ApplyPatch *ApplyPatchInfo `json:"applyPatch,omitempty"`
}

// ApplyPatchInfo carries the patch body for an apply_patch approval request.
type ApplyPatchInfo struct {
	Patch string `json:"patch"`
}

// approvalRequestPayload builds the wire payload for one pending
// permission.Request. The shell tool's first two command slots are
// read_chunk/apply_patch special forms (see internal/tools); everything
// else is a plain shell command.
func approvalRequestPayload(req permission.Request) ApprovalRequestPayload {
	var args struct {
		Command []string `json:"command"`
	}
	_ = json.Unmarshal([]byte(req.Arguments), &args)

	payload := ApprovalRequestPayload{Command: args.Command}
	if len(args.Command) >= 2 && args.Command[0] == "apply_patch" {
		payload.ApplyPatch = &ApplyPatchInfo{Patch: args.Command[1]}
	}
	return payload
}
