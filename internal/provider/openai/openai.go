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

// Package openai adapts OpenAI's Chat Completions API, via
// github.com/sashabaranov/go-openai, to the provider.Provider contract.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/weaveloop/weave/internal/provider"
)

// DefaultModel is used when a session's configured model is empty.
const DefaultModel = "gpt-4o"

// Adapter implements provider.Provider against OpenAI's Chat Completions
// API.
type Adapter struct {
	client *openai.Client
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
		return nil, fmt.Errorf("openai: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Name implements provider.Provider.
func (a *Adapter) Name() string { return "openai" }

// Model implements provider.Provider.
func (a *Adapter) Model() string { return a.model }

func (a *Adapter) buildRequest(req provider.Request, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = a.model
	}
	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(req.Messages, req.System),
		Stream:   stream,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}
	return chatReq
}

// Stream implements provider.Provider.
func (a *Adapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}

	out := make(chan provider.StreamEvent)
	go func() {
		defer close(out)
		defer stream.Close()

		toolCalls := make(map[int]*provider.ToolCallRequest)
		var usage provider.Usage

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				flushToolCalls(out, toolCalls)
				out <- provider.StreamEvent{Kind: provider.EventStreamEnd, Usage: usage}
				return
			}
			if err != nil {
				out <- provider.StreamEvent{Kind: provider.EventStreamError, Err: fmt.Errorf("openai: stream: %w", err)}
				return
			}
			if resp.Usage != nil {
				usage.InputTokens = resp.Usage.PromptTokens
				usage.OutputTokens = resp.Usage.CompletionTokens
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				out <- provider.StreamEvent{Kind: provider.EventTextDelta, Delta: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				if toolCalls[idx] == nil {
					toolCalls[idx] = &provider.ToolCallRequest{}
				}
				if tc.ID != "" {
					toolCalls[idx].ID = tc.ID
				}
				if tc.Function.Name != "" {
					toolCalls[idx].Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					toolCalls[idx].Arguments += tc.Function.Arguments
				}
			}
			if choice.FinishReason == openai.FinishReasonToolCalls {
				flushToolCalls(out, toolCalls)
				toolCalls = make(map[int]*provider.ToolCallRequest)
			}
			if choice.FinishReason != "" {
				out <- provider.StreamEvent{Kind: provider.EventFullMessageComplete, FinishReason: string(choice.FinishReason), Usage: usage}
			}
		}
	}()

	return out, nil
}

func flushToolCalls(out chan<- provider.StreamEvent, toolCalls map[int]*provider.ToolCallRequest) {
	for _, tc := range toolCalls {
		if tc.ID != "" && tc.Name != "" {
			out <- provider.StreamEvent{Kind: provider.EventToolUseCompleted, ToolCall: *tc}
		}
	}
}

// Complete implements provider.Provider with a single non-streaming call.
func (a *Adapter) Complete(ctx context.Context, req provider.Request) (string, provider.Usage, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req, false))
	if err != nil {
		return "", provider.Usage{}, fmt.Errorf("openai: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.Usage{}, fmt.Errorf("openai: empty response")
	}
	return resp.Choices[0].Message.Content, provider.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func convertMessages(messages []provider.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		switch m.Role {
		case "tool":
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Text,
				ToolCallID: m.ToolCallID,
			})
		case "assistant":
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, msg)
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		}
	}
	return result
}

func convertTools(tools []provider.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}
