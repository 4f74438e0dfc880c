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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Session is one play-through of a script.
type Session struct {
	ID        string
	Script    string
	StartedAt time.Time
	Lines     int
}

// Entry is one transcript row: a line as the player saw it.
type Entry struct {
	Session string
	Seq     int
	LineID  string
	Who     string
	What    string
	Outcome string
	TS      time.Time
}

// StartSession registers a new session.
func (i *Index) StartSession(ctx context.Context, id, script string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("storage: empty session id")
	}
	_, err := i.db.ExecContext(ctx, `INSERT INTO sessions(id, script, started_at) VALUES(?, ?, ?)`,
		id, script, formatTS(time.Now()))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	i.log.Debug("session started", slog.String("session", id), slog.String("script", script))
	return nil
}

// AppendTranscript stores e. The session must have been started.
func (i *Index) AppendTranscript(ctx context.Context, e Entry) error {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	_, err := i.db.ExecContext(ctx, `INSERT INTO transcript(session, seq, line_id, who, what, outcome, ts)
		VALUES(?, ?, ?, ?, ?, ?, ?)`, e.Session, e.Seq, e.LineID, e.Who, e.What, e.Outcome, formatTS(e.TS))
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// Transcript returns the entries of a session in order.
func (i *Index) Transcript(ctx context.Context, session string) ([]Entry, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT session, seq, line_id, who, what, outcome, ts
		FROM transcript WHERE session=? ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Session, &e.Seq, &e.LineID, &e.Who, &e.What, &e.Outcome, &ts); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.TS = parseTS(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions lists all sessions, newest first.
func (i *Index) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT s.id, s.script, s.started_at, COUNT(t.id)
		FROM sessions s LEFT JOIN transcript t ON t.session = s.id
		GROUP BY s.id ORDER BY s.started_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		var ts string
		if err := rows.Scan(&s.ID, &s.Script, &ts, &s.Lines); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = parseTS(ts)
		out = append(out, s)
	}
	return out, rows.Err()
}
