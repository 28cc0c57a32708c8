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
package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/pubsub"
	"github.com/weaveloop/weave/internal/session"
)

// Store is a SQLite-backed session.Service.
type Store struct {
	db     *sql.DB
	broker *pubsub.Broker[session.Session]
}

// Open opens (creating if necessary) the SQLite database at path and
// brings its schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers in-process

	mig, err := newMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := mig.migrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate up: %w", err)
	}

	return &Store{db: db, broker: pubsub.NewBroker[session.Session]()}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.broker.Shutdown()
	return s.db.Close()
}

// Create inserts a new session row and returns the record.
func (s *Store) Create(ctx context.Context, title string) (session.Session, error) {
	now := time.Now()
	rec := session.Session{
		ID:               session.NewID(),
		Title:            title,
		CreatedAt:        now,
		UpdatedAt:        now,
		ApprovalPolicy:   session.PolicySuggest,
		ContextStrategy:  session.StrategyThreshold,
		CompactThreshold: 0.8,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, updated_at, approval_policy, context_strategy, compact_threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
		rec.ApprovalPolicy, rec.ContextStrategy, rec.CompactThreshold,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("insert session: %w", err)
	}
	log.Info("session created", zap.String("session_id", rec.ID))
	s.broker.Publish(pubsub.NewCreatedEvent(rec))
	return rec, nil
}

// Get loads a session and its todos by id.
func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at, completion_tokens, prompt_tokens,
		       cost_usd, model, provider, approval_policy, context_strategy, compact_threshold
		FROM sessions WHERE id = ?`, id)

	rec, err := scanSession(row)
	if err != nil {
		return session.Session{}, err
	}
	rec.Todos, err = s.loadTodos(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	return rec, nil
}

// List returns every session, most-recently-updated first.
func (s *Store) List(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at, completion_tokens, prompt_tokens,
		       cost_usd, model, provider, approval_policy, context_strategy, compact_threshold
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a session and its todos.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete todos: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.broker.Publish(pubsub.NewDeletedEvent(session.Session{ID: id}))
	return nil
}

// Update persists a full session record, replacing its todo list.
func (s *Store) Update(ctx context.Context, rec session.Session) (session.Session, error) {
	rec.UpdatedAt = time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET title = ?, updated_at = ?, completion_tokens = ?, prompt_tokens = ?,
		       cost_usd = ?, model = ?, provider = ?, approval_policy = ?, context_strategy = ?,
		       compact_threshold = ?
		WHERE id = ?`,
		rec.Title, rec.UpdatedAt.Unix(), rec.CompletionTokens, rec.PromptTokens,
		rec.Cost, rec.Model, rec.Provider, rec.ApprovalPolicy, rec.ContextStrategy,
		rec.CompactThreshold, rec.ID,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("update session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE session_id = ?", rec.ID); err != nil {
		return session.Session{}, fmt.Errorf("clear todos: %w", err)
	}
	for i, t := range rec.Todos {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO todos (id, session_id, description, active_form, status, created_at, updated_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, rec.ID, t.ShortTaskDescription, t.ActiveForm, t.Status,
			t.CreatedAt.Unix(), t.UpdatedAt.Unix(), i,
		); err != nil {
			return session.Session{}, fmt.Errorf("insert todo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return session.Session{}, fmt.Errorf("commit update: %w", err)
	}
	s.broker.Publish(pubsub.NewUpdatedEvent(rec))
	return rec, nil
}

// Subscribe streams session create/update/delete events.
func (s *Store) Subscribe(ctx context.Context) <-chan pubsub.Event[session.Session] {
	return s.broker.Subscribe(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (session.Session, error) {
	var rec session.Session
	var createdAt, updatedAt int64
	err := row.Scan(
		&rec.ID, &rec.Title, &createdAt, &updatedAt, &rec.CompletionTokens, &rec.PromptTokens,
		&rec.Cost, &rec.Model, &rec.Provider, &rec.ApprovalPolicy, &rec.ContextStrategy,
		&rec.CompactThreshold,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("scan session: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return rec, nil
}

func (s *Store) loadTodos(ctx context.Context, sessionID string) ([]session.TodoItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, active_form, status, created_at, updated_at
		FROM todos WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	var todos []session.TodoItem
	for rows.Next() {
		var t session.TodoItem
		var createdAt, updatedAt int64
		if err := rows.Scan(&t.ID, &t.ShortTaskDescription, &t.ActiveForm, &t.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		t.UpdatedAt = time.Unix(updatedAt, 0)
		todos = append(todos, t)
	}
	return todos, rows.Err()
}
