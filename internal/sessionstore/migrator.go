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

// Package sessionstore persists the session index (id, title, token/cost
// counters, todos, per-session policy) to SQLite. The authoritative turn
// record stays the JSONL journal (see internal/journal); this store is
// the queryable side-index a REST-CRUD collaborator or a `weaved list`
// CLI command would read, never the source of truth for a transcript.
package sessionstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migration is a single schema step, paired up/down SQL.
type migration struct {
	Version     int
	Description string
	UpSQL       string
	DownSQL     string
}

// migrator applies embedded SQL migrations, tracked in a
// schema_migrations table, guarded by a mutex since SQLite serializes
// writers anyway.
type migrator struct {
	db         *sql.DB
	migrations []migration
	mu         sync.Mutex
}

func newMigrator(db *sql.DB) (*migrator, error) {
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return &migrator{db: db, migrations: migrations}, nil
}

func (m *migrator) migrateUp(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %d: %w", mig.Version, err)
		}
	}
	return nil
}

func (m *migrator) currentVersion(ctx context.Context) (int, error) {
	var count int
	if err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'",
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("check schema_migrations: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	var version int
	err := m.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	return version, nil
}

func (m *migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			description TEXT
		)
	`)
	return err
}

func (m *migrator) apply(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return fmt.Errorf("exec migration sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?) ON CONFLICT (version) DO NOTHING",
		mig.Version, mig.Description,
	); err != nil {
		return fmt.Errorf("record migration version: %w", err)
	}
	return tx.Commit()
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	up := make(map[int]string)
	down := make(map[int]string)
	desc := make(map[int]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		remainder := parts[1]
		if d, ok := strings.CutSuffix(remainder, ".up.sql"); ok {
			desc[version] = d
			up[version] = string(content)
		} else if strings.HasSuffix(remainder, ".down.sql") {
			down[version] = string(content)
		}
	}

	versions := make([]int, 0, len(up))
	for v := range up {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	migrations := make([]migration, 0, len(versions))
	for _, v := range versions {
		migrations = append(migrations, migration{
			Version:     v,
			Description: desc[v],
			UpSQL:       up[v],
			DownSQL:     down[v],
		})
	}
	return migrations, nil
}
