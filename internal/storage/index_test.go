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
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("OpenIndex error: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexOpenCreatesWALAndMetaVersion(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenIndex(dir)
	if err != nil {
		t.Fatalf("OpenIndex error: %v", err)
	}
	if idx.Path() != filepath.Join(dir, IndexFileName) {
		t.Fatalf("unexpected path %s", idx.Path())
	}
	_ = idx.Close()

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(IndexPath(dir)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','seen_lines','sessions','transcript')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 5 {
		t.Fatalf("expected 5 tables, got %d", cnt)
	}
}

func TestOpenIndexRequiresDir(t *testing.T) {
	if _, err := OpenIndex("  "); err == nil {
		t.Fatalf("expected error for empty data dir")
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	idx, err := OpenIndex(dir)
	if err != nil {
		t.Fatalf("OpenIndex error: %v", err)
	}
	if err := idx.MarkSeen(ctx, "l1"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	_ = idx.Close()

	idx, err = OpenIndex(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer idx.Close()
	ok, err := idx.Seen(ctx, "l1")
	if err != nil || !ok {
		t.Fatalf("expected l1 seen after reopen, ok=%v err=%v", ok, err)
	}
	v, err := idx.SchemaVersion(ctx)
	if err != nil || v != schemaVersion {
		t.Fatalf("schema = %d (err %v), want %d", v, err, schemaVersion)
	}
}
