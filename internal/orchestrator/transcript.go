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
	"strings"

	"github.com/weaveloop/weave/internal/message"
	"github.com/weaveloop/weave/internal/provider"
)

// serializeTranscript renders items as one string for the Context
// Manager's four-chars-per-token approximation. The exact rendering
// does not matter to any invariant — only its length.
func serializeTranscript(items []message.Item) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(string(item.Kind))
		b.WriteByte(':')
		switch item.Kind {
		case message.KindToolCall:
			if item.Call != nil {
				b.WriteString(item.Call.Name)
				b.WriteString(item.Call.Arguments)
			}
		case message.KindToolResult:
			if item.Result != nil {
				b.WriteString(item.Result.Content)
			}
		default:
			b.WriteString(item.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// toProviderMessages converts the transcript into the provider-neutral
// Message list a Provider adapter consumes. Every adapter rebuilds its
// own native message shape from this list on every call — the full
// transcript is resent each turn (no server-side response storage is
// relied on), which folds Adapter A's "tool results as a user message
// immediately following the assistant message" requirement and Adapter
// B's flat-sequence requirement into one shared representation: ToolCall
// is carried on the assistant message that produced it, ToolResult
// becomes its own "tool" message immediately after.
func toProviderMessages(items []message.Item) []provider.Message {
	result := make([]provider.Message, 0, len(items))
	for i := 0; i < len(items); i++ {
		item := items[i]
		switch item.Kind {
		case message.KindUserMessage:
			result = append(result, provider.Message{Role: "user", Text: item.Text})
		case message.KindAssistantMessage:
			result = append(result, provider.Message{Role: "assistant", Text: item.Text})
		case message.KindToolCall:
			if item.Call == nil {
				continue
			}
			tc := provider.ToolCallRequest{ID: item.Call.ID, Name: item.Call.Name, Arguments: item.Call.Arguments}
			if len(result) > 0 && result[len(result)-1].Role == "assistant" {
				result[len(result)-1].ToolCalls = append(result[len(result)-1].ToolCalls, tc)
			} else {
				result = append(result, provider.Message{Role: "assistant", ToolCalls: []provider.ToolCallRequest{tc}})
			}
		case message.KindToolResult:
			if item.Result == nil {
				continue
			}
			result = append(result, provider.Message{
				Role:       "tool",
				Text:       item.Result.Content,
				ToolCallID: item.Result.ToolCallID,
				IsError:    item.Result.IsError,
			})
		case message.KindReasoning, message.KindSystemNotice:
			// Not sent back to the provider: reasoning is provider-owned
			// scratch space and system notices are transport-only.
		}
	}
	return result
}
