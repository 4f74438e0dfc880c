/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	applog "govn/internal/log"
	"govn/internal/storage"
)

// Local is the player database side of a sync.
type Local interface {
	SeenSince(ctx context.Context, t time.Time) ([]storage.SeenLine, error)
	Merge(ctx context.Context, s storage.SeenLine) error
	LastSync(ctx context.Context) (time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// Remote is the shared side of a sync.
type Remote interface {
	Push(ctx context.Context, profile string, lines []storage.SeenLine) (int, error)
	Pull(ctx context.Context, profile string, since time.Time) ([]storage.SeenLine, error)
}

// SyncStats reports what one sync moved.
type SyncStats struct {
	Pushed int
	Pulled int
	At     time.Time
}

// nowFn is swapped in tests.
var nowFn = time.Now

// Sync pushes lines read locally since the last sync, then merges lines the
// server changed since then. The sync mark only moves on full success.
func Sync(ctx context.Context, local Local, remote Remote, profile string) (SyncStats, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	l := applog.WithOperation(applog.WithComponent("backend"), "sync").With(slog.String("profile", profile))
	since, err := local.LastSync(ctx)
	if err != nil {
		return SyncStats{}, err
	}
	started := nowFn()

	mine, err := local.SeenSince(ctx, since)
	if err != nil {
		return SyncStats{}, err
	}
	pushed, err := remote.Push(ctx, profile, mine)
	if err != nil {
		return SyncStats{}, fmt.Errorf("push: %w", err)
	}
	theirs, err := remote.Pull(ctx, profile, since)
	if err != nil {
		return SyncStats{Pushed: pushed}, fmt.Errorf("pull: %w", err)
	}
	for _, s := range theirs {
		if err := local.Merge(ctx, s); err != nil {
			return SyncStats{Pushed: pushed}, err
		}
	}
	if err := local.SetLastSync(ctx, started); err != nil {
		return SyncStats{Pushed: pushed, Pulled: len(theirs)}, err
	}
	st := SyncStats{Pushed: pushed, Pulled: len(theirs), At: started}
	l.Info("sync done", slog.Int("pushed", st.Pushed), slog.Int("pulled", st.Pulled))
	return st, nil
}
