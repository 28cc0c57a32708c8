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
	"encoding/json"
	"fmt"

	"github.com/weaveloop/weave/internal/journal"
	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/orchestrator"
	"github.com/weaveloop/weave/internal/version"
)

// frameEnvelope decodes just enough of a journaled outbound frame to
// tell what kind it was before committing to the full payload shape.
type frameEnvelope struct {
	Type    orchestrator.FrameType `json:"type"`
	Payload json.RawMessage        `json:"payload"`
}

// replayTranscript rebuilds a session's transcript from its journal.
// Every response_item frame the Orchestrator journals is already a
// durable, transcript-worthy item — streamed text fragments carry
// SkipJournal and are never written — so replay is a straight filter of
// EventSent frames by type, in the order the journal recorded them.
func replayTranscript(dir, sessionID string) ([]message.Item, error) {
	events, err := journal.Replay(dir, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transport: replay journal for %q: %w", sessionID, err)
	}

	items := make([]message.Item, 0, len(events))
	for _, evt := range events {
		if evt.EventType == journal.EventSessionConnected && !version.CompatibleSchema(evt.Schema) {
			return nil, fmt.Errorf("transport: journal for %q recorded under incompatible schema %q (running %q)",
				sessionID, evt.Schema, version.JournalSchema)
		}
		if evt.EventType != journal.EventSent {
			continue
		}
		var env frameEnvelope
		if err := json.Unmarshal(evt.MessageData, &env); err != nil {
			continue
		}
		if env.Type != orchestrator.FrameResponseItem {
			continue
		}
		var payload orchestrator.ResponseItemPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			continue
		}
		items = append(items, payload.Item)
	}
	return items, nil
}
