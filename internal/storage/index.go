/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "govn/internal/log"
	"govn/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "index.sqlite"
	BackupsDirName = "backups"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2

	// tsLayout is fixed width so timestamps compare correctly as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrNoDataDir is returned when no data directory was given.
var ErrNoDataDir = errors.New("storage: data dir is required")

// Index is an open player database.
type Index struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// IndexPath returns the full path to the database file in dataDir.
func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, IndexFileName)
}

// OpenIndex ensures that the SQLite database exists in dataDir, enables WAL
// mode, creates the schema and runs migrations.
func OpenIndex(dataDir string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(
		slog.String("dir", dataDir),
	)
	if strings.TrimSpace(dataDir) == "" {
		return nil, ErrNoDataDir
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		l.Error("create data dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := IndexPath(dataDir)
	// Convert to forward slashes for the SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("index ready", slog.String("path", path))
	return &Index{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

// OpenOrRebuild opens the database and, if it cannot be opened or fails the
// integrity check, backs the file up and starts over with an empty one.
// It reports whether a rebuild happened.
func OpenOrRebuild(ctx context.Context, dataDir string) (*Index, bool, error) {
	idx, err := OpenIndex(dataDir)
	if err == nil {
		if idx.healthy(ctx) {
			return idx, false, nil
		}
		_ = idx.Close()
	} else if errors.Is(err, ErrNoDataDir) {
		return nil, false, err
	}
	path := IndexPath(dataDir)
	applog.WithComponent("storage").Warn("index unusable, rebuilding", slog.String("path", path), slog.Any("err", err))
	backupIndexFile(path)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
	idx, err = OpenIndex(dataDir)
	if err != nil {
		return nil, false, fmt.Errorf("rebuild index: %w", err)
	}
	return idx, true, nil
}

func (i *Index) healthy(ctx context.Context) bool {
	var chk string
	if err := i.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		return false
	}
	_, err := i.db.ExecContext(ctx, `SELECT 1 FROM seen_lines LIMIT 1;`)
	return err == nil
}

// Path returns the database file path.
func (i *Index) Path() string { return i.path }

// Close releases the database.
func (i *Index) Close() error { return i.db.Close() }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh database starts at schema 1 and migrates up
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS seen_lines (
			line_id    TEXT    PRIMARY KEY,
			first_seen TEXT    NOT NULL,
			last_seen  TEXT    NOT NULL,
			times      INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			script     TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transcript (
			id      INTEGER PRIMARY KEY,
			session TEXT    NOT NULL,
			seq     INTEGER NOT NULL,
			line_id TEXT    NOT NULL,
			who     TEXT    NOT NULL,
			what    TEXT    NOT NULL,
			outcome TEXT    NOT NULL,
			ts      TEXT    NOT NULL,
			FOREIGN KEY(session) REFERENCES sessions(id) ON DELETE CASCADE
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_transcript_session_seq ON transcript(session, seq);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_seen_last_seen ON seen_lines(last_seen);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reads the current schema version.
func (i *Index) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := i.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// backupIndexFile copies the current database into a timestamped backup next to it.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
