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

// Package session provides the persisted session record: metadata, the
// todo list, and the per-session config an Orchestrator is created from. The live turn state (generation counter, transcript,
// in-flight provider call) lives in internal/orchestrator instead — this
// package only holds what survives a restart and gets resumed.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/weaveloop/weave/internal/pubsub"
)

// ApprovalPolicy controls how the Approval Coordinator resolves a
// PendingApproval by default.
type ApprovalPolicy string

const (
	// PolicySuggest requires explicit approval for every tool call.
	PolicySuggest ApprovalPolicy = "suggest"
	// PolicyAutoEdit auto-approves file-editing tools, still asks for
	// everything else (e.g. shell).
	PolicyAutoEdit ApprovalPolicy = "auto-edit"
	// PolicyFullAuto auto-approves every tool call.
	PolicyFullAuto ApprovalPolicy = "full-auto"
)

// ContextStrategy selects how the Context Manager reacts to rising token
// usage.
type ContextStrategy string

const (
	// StrategyThreshold auto-compacts once usage crosses the configured
	// threshold.
	StrategyThreshold ContextStrategy = "threshold"
	// StrategyPassive only warns; compaction must be requested explicitly.
	StrategyPassive ContextStrategy = "passive"
)

// Session is the persisted record for one orchestrator session.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time

	CompletionTokens int
	PromptTokens     int
	Cost             float64

	Todos []TodoItem

	Model    string
	Provider string

	ApprovalPolicy  ApprovalPolicy
	ContextStrategy ContextStrategy
	// CompactThreshold is the fraction (0-1) of the model's context window
	// that triggers auto-compaction under StrategyThreshold.
	CompactThreshold float64
}

// NewID mints a session identifier. Dashes are stripped so ids read as a
// flat 32-hex-char token, matching the convention callers of the teacher's
// session store already followed elsewhere in the pack.
func NewID() string {
	id := uuid.New()
	return stripDashes(id.String())
}

func stripDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// Merge returns a copy of s with the non-zero CompletionTokens,
// PromptTokens, Cost, Model, Provider, Title, UpdatedAt and Todos of
// update applied; ID, CreatedAt, ApprovalPolicy, ContextStrategy and
// CompactThreshold always keep s's values. This preserves fields like
// Title and Todos across partial updates (e.g. a
// cost/token bump at the end of a turn should not clobber the title).
func (s Session) Merge(update Session) Session {
	result := s
	if update.CompletionTokens > 0 {
		result.CompletionTokens = update.CompletionTokens
	}
	if update.PromptTokens > 0 {
		result.PromptTokens = update.PromptTokens
	}
	if update.Cost > 0 {
		result.Cost = update.Cost
	}
	if update.Model != "" {
		result.Model = update.Model
	}
	if update.Provider != "" {
		result.Provider = update.Provider
	}
	if update.Title != "" {
		result.Title = update.Title
	}
	if !update.UpdatedAt.IsZero() {
		result.UpdatedAt = update.UpdatedAt
	}
	if len(update.Todos) > 0 {
		result.Todos = update.Todos
	}
	return result
}

// TodoStatus represents the status of a todo item.
type TodoStatus string

const (
	TodoStatusPending    TodoStatus = "pending"
	TodoStatusInProgress TodoStatus = "in_progress"
	TodoStatusCompleted  TodoStatus = "completed"
)

// TodoItem is one entry the AddTodo/UpdateTodo/ShowTodos tool family
// operates on. ActiveForm (the present-continuous form shown while a
// todo is in progress, e.g. "Running migration") is carried over from
// the teacher's Todo type; ID/CreatedAt/UpdatedAt are new, since the
// todo tool family needs to address and re-order individual items.
type TodoItem struct {
	ID                   string
	ShortTaskDescription string
	ActiveForm           string
	Status               TodoStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewTodoItem creates a pending todo with a fresh id and timestamps.
func NewTodoItem(shortTaskDescription, activeForm string) TodoItem {
	now := time.Now()
	return TodoItem{
		ID:                   uuid.NewString(),
		ShortTaskDescription: shortTaskDescription,
		ActiveForm:           activeForm,
		Status:               TodoStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Service defines the session record store: creation, lookup, listing,
// deletion and change notification. The transport Registry reads a
// session's record through it when the session is first opened, and the
// todo tools write the todo list back through Update.
type Service interface {
	Create(ctx context.Context, title string) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	List(ctx context.Context) ([]Session, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, s Session) (Session, error)
	Subscribe(ctx context.Context) <-chan pubsub.Event[Session]
}
