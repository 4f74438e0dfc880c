/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend mirrors the seen-line registry to a shared Postgres database
// so read-state follows the player across devices.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "govn/internal/log"
	"govn/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultProfile is used when no profile name is configured.
const DefaultProfile = "default"

// SeenMirror is the Postgres side of the seen-line registry.
type SeenMirror struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to dsn, pings it and applies pending migrations.
func Open(ctx context.Context, dsn string) (*SeenMirror, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("backend: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	l := applog.WithComponent("backend")
	if err := applyMigrations(ctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SeenMirror{db: db, log: l}, nil
}

func (m *SeenMirror) Close() error { return m.db.Close() }

// Push upserts lines for profile. Counters and timestamps only grow.
func (m *SeenMirror) Push(ctx context.Context, profile string, lines []storage.SeenLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin push: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO seen_lines(profile, line_id, first_seen, last_seen, times, updated_at)
		VALUES($1, $2, $3, $4, $5, now())
		ON CONFLICT (profile, line_id) DO UPDATE SET
			first_seen = LEAST(seen_lines.first_seen, EXCLUDED.first_seen),
			last_seen  = GREATEST(seen_lines.last_seen, EXCLUDED.last_seen),
			times      = GREATEST(seen_lines.times, EXCLUDED.times),
			updated_at = now()`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare push: %w", err)
	}
	defer stmt.Close()
	for _, s := range lines {
		if _, err := stmt.ExecContext(ctx, profile, s.LineID, s.FirstSeen.UTC(), s.LastSeen.UTC(), s.Times); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("push %s: %w", s.LineID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit push: %w", err)
	}
	m.log.Debug("pushed seen lines", slog.String("profile", profile), slog.Int("n", len(lines)))
	return len(lines), nil
}

// Pull returns the lines of profile changed on the server after since.
func (m *SeenMirror) Pull(ctx context.Context, profile string, since time.Time) ([]storage.SeenLine, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT line_id, first_seen, last_seen, times FROM seen_lines
		WHERE profile = $1 AND updated_at > $2 ORDER BY updated_at, line_id`, profile, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	defer rows.Close()
	var out []storage.SeenLine
	for rows.Next() {
		var s storage.SeenLine
		if err := rows.Scan(&s.LineID, &s.FirstSeen, &s.LastSeen, &s.Times); err != nil {
			return nil, fmt.Errorf("scan pull: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each one in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
