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
	"bufio"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/orchestrator"
)

// Handler serves one Registry's sessions over HTTP: a newline-delimited
// JSON POST endpoint for client frames, and an SSE stream per session
// for server frames.
type Handler struct {
	registry *Registry
}

// NewHandler wraps registry in a net/http.Handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Mux builds the route table: POST /sessions/{id}/input accepts client
// frames, GET /sessions/{id}/events opens the session's SSE stream,
// mirroring the health-check-plus-custom-SSE-route shape of the
// teacher's own HTTP server.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /sessions/{id}/input", h.handleInput)
	mux.HandleFunc("GET /sessions/{id}/events", h.handleEvents)
	return mux
}

// handleInput reads the POST body as newline-delimited JSON ClientFrames
// and dispatches each in order before responding, grounded on the
// stdio transport's line-framing discipline.
func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	handle, err := h.registry.Get(r.Context(), sessionID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame ClientFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		if err := handle.handleClientFrame(r.Context(), frame); err != nil {
			log.Error("transport: handle client frame", zap.String("session_id", sessionID), zap.String("frame_type", string(frame.Type)), zap.Error(err))
			writeJSONError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleEvents hands the request to the session's SSE stream, injecting
// the stream-id query parameter the r3labs/sse server keys its
// broadcast groups by.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := h.registry.Get(r.Context(), sessionID); err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	q := r.URL.Query()
	q.Set("stream", sessionID)
	r.URL.RawQuery = q.Encode()

	h.registry.sseServer.ServeHTTP(w, r)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(orchestrator.ErrorPayload{Message: err.Error()})
}
