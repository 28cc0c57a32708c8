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

// Package permission implements the Approval Coordinator: the state
// machine that gates a tool call behind an explicit approve/deny
// decision before the dispatcher is allowed to execute it.
package permission

import (
	"context"

	"github.com/weaveloop/weave/internal/pubsub"
)

// Request describes one tool call awaiting approval.
type Request struct {
	ID          string
	SessionID   string
	ToolCallID  string
	ToolName    string
	Description string
	Arguments   string
	Path        string // populated for file-touching tools
}

// State is the Approval Coordinator's state for a session's single
// in-flight approval slot.
type State string

const (
	StateIdle       State = "idle"
	StatePending    State = "pending"
	StateExplaining State = "explaining"
)

// Resolution is how a Pending request was resolved.
type Resolution string

const (
	// ResolutionApprove allows this one tool call to run.
	ResolutionApprove Resolution = "approve"
	// ResolutionDenyContinue rejects the tool call but lets the turn
	// continue (the model sees a ToolResult with IsError set).
	ResolutionDenyContinue Resolution = "deny_continue"
	// ResolutionDenyExit rejects the tool call (the model sees a
	// ToolResult with IsError set). Nothing stops the turn on it: the
	// orchestrator carries on with the result as for ResolutionDenyContinue.
	ResolutionDenyExit Resolution = "deny_exit"
	// ResolutionAlways approves this tool call and every future call to
	// the same tool name for the rest of the session.
	ResolutionAlways Resolution = "always"
)

// Notification reports a terminal approval decision, for observers that
// only need the outcome (e.g. the transport, to emit an
// approval_resolved frame) rather than the full Request/State machinery.
type Notification struct {
	ToolCallID string
	Resolution Resolution
}

// ExplainRequest is raised when the approver asks "why" instead of
// resolving; the orchestrator answers it via ProvideExplanation without
// touching the original Request's pending resolution.
type ExplainRequest struct {
	RequestID string
	Question  string
}

// ExplainResult carries the answer to an ExplainRequest back to whoever
// is waiting on it (normally the transport, to relay it to the client).
type ExplainResult struct {
	RequestID string
	Answer    string
}

// ErrDenied is a DeniedError value with no Resolution set. RequestApproval
// does not return it: a denial comes back as a Resolution with a nil error.
var ErrDenied = &DeniedError{}

// DeniedError indicates a tool call's approval request was denied.
type DeniedError struct {
	Resolution Resolution
}

func (e *DeniedError) Error() string {
	return "permission denied"
}

// Service is the Approval Coordinator's external surface. The dispatcher
// calls RequestApproval and blocks on its result; a transport or CLI
// front-end drives Resolve/Explain from the other side after receiving a
// Request off Subscribe.
type Service interface {
	// RequestApproval blocks until the request is resolved, ctx is
	// done, or the session is set to skip requests / has this tool
	// name always-approved already.
	RequestApproval(ctx context.Context, req Request) (Resolution, error)

	// Resolve answers the currently pending request for a session. It
	// is an error to resolve a request that is not the session's
	// current pending one.
	Resolve(requestID string, resolution Resolution) error

	// Explain moves the current pending request into StateExplaining;
	// ProvideExplanation moves it back to StatePending once answered.
	Explain(requestID, question string) error
	ProvideExplanation(requestID, answer string) error

	// SkipRequests toggles session-wide auto-approval (the "yolo"
	// override), independent of per-tool "always" elevation.
	SetSkipRequests(sessionID string, skip bool)
	SkipRequests(sessionID string) bool

	// AutoApproveSession elevates a whole session to skip approval for
	// the remainder of its lifetime (used by full-auto policy).
	AutoApproveSession(sessionID string)

	Subscribe(ctx context.Context) <-chan pubsub.Event[Request]
	SubscribeNotifications(ctx context.Context) <-chan pubsub.Event[Notification]
	SubscribeExplanations(ctx context.Context) <-chan pubsub.Event[ExplainRequest]
}
