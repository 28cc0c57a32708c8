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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/journal"
	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/orchestrator"
	"github.com/weaveloop/weave/internal/permission"
)

// sessionHandle ties one session's Orchestrator, Approval Coordinator,
// and journal together and fans both frame sources into one SSE stream.
type sessionHandle struct {
	id         string
	orch       *orchestrator.Orchestrator
	approvals  permission.Service
	journal    *journal.Journal
	cancelFeed context.CancelFunc

	mu      sync.Mutex
	pending map[string]string // permission.Request.ID -> ToolCallID, for explain round-trips keyed by request id
}

// run drains the Orchestrator's outbound frames and the Approval
// Coordinator's pending requests, journals what the Orchestrator itself
// does not (approval_request originates outside Orchestrator.emit), and
// publishes everything onto the session's SSE stream. It returns once
// feedCtx is canceled.
func (h *sessionHandle) run(feedCtx context.Context, server *sse.Server) {
	frames := h.orch.Subscribe(feedCtx)
	requests := h.approvals.Subscribe(feedCtx)

	for {
		select {
		case <-feedCtx.Done():
			return
		case evt, ok := <-frames:
			if !ok {
				return
			}
			h.publish(server, evt.Payload)
		case evt, ok := <-requests:
			if !ok {
				return
			}
			req := evt.Payload
			if req.SessionID != h.id {
				continue
			}
			frame := orchestrator.Frame{
				ID:      uuid.NewString(),
				Type:    FrameApprovalRequest,
				Payload: approvalRequestPayload(req),
			}
			h.mu.Lock()
			if h.pending == nil {
				h.pending = make(map[string]string)
			}
			h.pending[frame.ID] = req.ID
			h.mu.Unlock()

			if err := h.journal.RecordSent(frame); err != nil {
				log.Error("transport: journal approval_request", zap.String("session_id", h.id), zap.Error(err))
			}
			h.publish(server, frame)
		}
	}
}

func (h *sessionHandle) publish(server *sse.Server, frame orchestrator.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error("transport: marshal outbound frame", zap.String("session_id", h.id), zap.Error(err))
		return
	}
	server.Publish(h.id, &sse.Event{Event: []byte(string(frame.Type)), Data: data})
}

// resolveRequestID maps an approval_request frame id back to the
// Approval Coordinator's own request id; the two differ because the
// frame id is minted fresh for the wire while permission.Coordinator
// tracks requests by its own id.
func (h *sessionHandle) resolveRequestID(frameID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.pending[frameID]
	return id, ok
}

// handleClientFrame journals the inbound frame, then dispatches it
// against the session's Orchestrator or Approval Coordinator per its
// type. Approval responses are looked up by the pending map populated
// in run, since the client addresses them by the wire frame id.
func (h *sessionHandle) handleClientFrame(ctx context.Context, cf ClientFrame) error {
	if err := h.journal.RecordReceived(cf); err != nil {
		log.Error("transport: journal inbound frame", zap.String("session_id", h.id), zap.Error(err))
	}

	switch cf.Type {
	case ClientUserInput:
		var payload UserInputPayload
		if err := json.Unmarshal(cf.Payload, &payload); err != nil {
			return fmt.Errorf("transport: decode user_input payload: %w", err)
		}
		items := make([]message.Item, 0, len(payload.Input))
		for _, in := range payload.Input {
			items = append(items, message.NewUserMessage(h.id, in.Text))
		}
		go func() {
			if err := h.orch.Run(context.Background(), items); err != nil {
				log.Error("transport: orchestrator run", zap.String("session_id", h.id), zap.Error(err))
			}
		}()
		return nil

	case ClientApprovalResponse:
		var payload ApprovalResponsePayload
		if err := json.Unmarshal(cf.Payload, &payload); err != nil {
			return fmt.Errorf("transport: decode approval_response payload: %w", err)
		}
		requestID, ok := h.resolveRequestID(cf.ID)
		if !ok {
			return fmt.Errorf("transport: no pending approval for frame %q", cf.ID)
		}
		if payload.Review == "explain" {
			return h.approvals.Explain(requestID, payload.Question)
		}
		resolution, err := reviewToResolution(payload.Review)
		if err != nil {
			return err
		}
		return h.approvals.Resolve(requestID, resolution)

	case ClientGetContextInfo:
		h.orch.ContextInfo()
		return nil

	case ClientManualCompact:
		return h.orch.Compact(ctx)

	default:
		return fmt.Errorf("transport: unknown client frame type %q", cf.Type)
	}
}

func reviewToResolution(review string) (permission.Resolution, error) {
	switch review {
	case "yes":
		return permission.ResolutionApprove, nil
	case "no-continue":
		return permission.ResolutionDenyContinue, nil
	case "no-exit":
		return permission.ResolutionDenyExit, nil
	case "always":
		return permission.ResolutionAlways, nil
	default:
		return "", fmt.Errorf("transport: unknown approval_response review %q", review)
	}
}
