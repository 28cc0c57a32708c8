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

// Package anthropic adapts Anthropic's Messages API, via
// github.com/anthropics/anthropic-sdk-go, to the provider.Provider
// contract.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/weaveloop/weave/internal/provider"
)

// DefaultModel is used when a session's configured model is empty.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens bounds a single completion when the caller does not
// set Request.MaxTokens.
const DefaultMaxTokens = 4096

// Adapter implements provider.Provider against Anthropic's API.
type Adapter struct {
	client anthropic.Client
	model  string
}

// Config configures an Adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New creates an Adapter. APIKey is required.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{client: anthropic.NewClient(opts...), model: model}, nil
}

// NewWithClient wraps an already-constructed anthropic.Client — used by
// the bedrock adapter, which needs a client built with
// bedrock.WithConfig rather than option.WithAPIKey.
func NewWithClient(client anthropic.Client, model string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{client: client, model: model}
}

// Name implements provider.Provider.
func (a *Adapter) Name() string { return "anthropic" }

// Model implements provider.Provider.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) buildParams(req provider.Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params, nil
}

// Stream implements provider.Provider.
func (a *Adapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	out := make(chan provider.StreamEvent)

	go func() {
		defer close(out)

		var currentToolCall *provider.ToolCallRequest
		var toolInput strings.Builder
		var usage provider.Usage

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					usage.InputTokens = int(ms.Message.Usage.InputTokens)
				}

			case "content_block_start":
				block := event.AsContentBlockStart().ContentBlock
				if block.Type == "tool_use" {
					toolUse := block.AsToolUse()
					currentToolCall = &provider.ToolCallRequest{ID: toolUse.ID, Name: toolUse.Name}
					toolInput.Reset()
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				switch delta.Type {
				case "text_delta":
					if delta.Text != "" {
						out <- provider.StreamEvent{Kind: provider.EventTextDelta, Delta: delta.Text}
					}
				case "thinking_delta":
					if delta.Thinking != "" {
						out <- provider.StreamEvent{Kind: provider.EventReasoningDelta, Delta: delta.Thinking}
					}
				case "input_json_delta":
					toolInput.WriteString(delta.PartialJSON)
				}

			case "content_block_stop":
				if currentToolCall != nil {
					currentToolCall.Arguments = toolInput.String()
					out <- provider.StreamEvent{Kind: provider.EventToolUseCompleted, ToolCall: *currentToolCall}
					currentToolCall = nil
				}

			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					usage.OutputTokens = int(md.Usage.OutputTokens)
				}
				out <- provider.StreamEvent{
					Kind:         provider.EventFullMessageComplete,
					FinishReason: string(md.Delta.StopReason),
					Usage:        usage,
				}

			case "message_stop":
				out <- provider.StreamEvent{Kind: provider.EventStreamEnd, Usage: usage}
				return
			}
		}

		if err := stream.Err(); err != nil {
			out <- provider.StreamEvent{Kind: provider.EventStreamError, Err: fmt.Errorf("anthropic: stream: %w", err)}
		}
	}()

	return out, nil
}

// Complete implements provider.Provider with a single non-streaming call,
// used by the Context Manager to produce compaction summaries.
func (a *Adapter) Complete(ctx context.Context, req provider.Request) (string, provider.Usage, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return "", provider.Usage{}, fmt.Errorf("anthropic: build request: %w", err)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", provider.Usage{}, fmt.Errorf("anthropic: complete: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb := block.AsAny(); tb != nil {
			if t, ok := tb.(anthropic.TextBlock); ok {
				text.WriteString(t.Text)
			}
		}
	}

	return text.String(), provider.Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func convertMessages(messages []provider.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		switch m.Role {
		case "tool":
			blocks = append(blocks, anthropic.NewToolResultBlock(m.ToolCallID, m.Text, m.IsError))
			result = append(result, anthropic.NewUserMessage(blocks...))
			continue
		default:
			if m.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						return nil, fmt.Errorf("anthropic: decode tool call arguments: %w", err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
		}

		if m.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result, nil
}

func convertTools(tools []provider.Tool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{Properties: t.InputSchema}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result
}
