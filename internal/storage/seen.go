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
	"strings"
	"time"
)

// SeenLine is one entry of the seen-line registry.
type SeenLine struct {
	LineID    string
	FirstSeen time.Time
	LastSeen  time.Time
	Times     int
}

const metaLastSync = "last_sync"

// MarkSeen records that the player has read lineID now.
func (i *Index) MarkSeen(ctx context.Context, lineID string) error {
	return i.MarkSeenAt(ctx, lineID, time.Now())
}

// MarkSeenAt records that lineID was read at t. Re-reading bumps the counter
// and moves last_seen forward; first_seen only ever moves back.
func (i *Index) MarkSeenAt(ctx context.Context, lineID string, t time.Time) error {
	if strings.TrimSpace(lineID) == "" {
		return errors.New("storage: empty line id")
	}
	ts := formatTS(t)
	_, err := i.db.ExecContext(ctx, `INSERT INTO seen_lines(line_id, first_seen, last_seen, times) VALUES(?, ?, ?, 1)
		ON CONFLICT(line_id) DO UPDATE SET
			times = times + 1,
			first_seen = min(first_seen, excluded.first_seen),
			last_seen = max(last_seen, excluded.last_seen)`, lineID, ts, ts)
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", lineID, err)
	}
	return nil
}

// Merge inserts a line read elsewhere without counting it as a new read.
func (i *Index) Merge(ctx context.Context, s SeenLine) error {
	if strings.TrimSpace(s.LineID) == "" {
		return errors.New("storage: empty line id")
	}
	first, last := s.FirstSeen, s.LastSeen
	if first.IsZero() {
		first = last
	}
	if last.IsZero() {
		last = first
	}
	times := s.Times
	if times <= 0 {
		times = 1
	}
	_, err := i.db.ExecContext(ctx, `INSERT INTO seen_lines(line_id, first_seen, last_seen, times) VALUES(?, ?, ?, ?)
		ON CONFLICT(line_id) DO UPDATE SET
			times = max(times, excluded.times),
			first_seen = min(first_seen, excluded.first_seen),
			last_seen = max(last_seen, excluded.last_seen)`, s.LineID, formatTS(first), formatTS(last), times)
	if err != nil {
		return fmt.Errorf("merge seen %s: %w", s.LineID, err)
	}
	return nil
}

// Seen reports whether lineID has been read before.
func (i *Index) Seen(ctx context.Context, lineID string) (bool, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT 1 FROM seen_lines WHERE line_id=?`, lineID).Scan(&n)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query seen %s: %w", lineID, err)
	}
	return true, nil
}

// SeenSince returns the lines whose last read is after t, oldest first.
// A zero t returns every line.
func (i *Index) SeenSince(ctx context.Context, t time.Time) ([]SeenLine, error) {
	since := ""
	if !t.IsZero() {
		since = formatTS(t)
	}
	rows, err := i.db.QueryContext(ctx, `SELECT line_id, first_seen, last_seen, times FROM seen_lines
		WHERE last_seen > ? ORDER BY last_seen, line_id`, since)
	if err != nil {
		return nil, fmt.Errorf("query seen since: %w", err)
	}
	defer rows.Close()
	var out []SeenLine
	for rows.Next() {
		var s SeenLine
		var first, last string
		if err := rows.Scan(&s.LineID, &first, &last, &s.Times); err != nil {
			return nil, fmt.Errorf("scan seen: %w", err)
		}
		s.FirstSeen, s.LastSeen = parseTS(first), parseTS(last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LastSync returns the time of the last successful backend sync (zero if never).
func (i *Index) LastSync(ctx context.Context) (time.Time, error) {
	var v string
	err := i.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, metaLastSync).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("read last sync: %w", err)
	}
	return parseTS(v), nil
}

// SetLastSync stores the time of a successful backend sync.
func (i *Index) SetLastSync(ctx context.Context, t time.Time) error {
	_, err := i.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, metaLastSync, formatTS(t))
	if err != nil {
		return fmt.Errorf("write last sync: %w", err)
	}
	return nil
}
