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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscriptRoundTrip(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.StartSession(ctx, "s1", "intro.vn"))
	require.NoError(t, idx.AppendTranscript(ctx, Entry{Session: "s1", Seq: 1, LineID: "l2", Who: "Eileen", What: "Second.", Outcome: "completed"}))
	require.NoError(t, idx.AppendTranscript(ctx, Entry{Session: "s1", Seq: 0, LineID: "l1", Who: "", What: "First.", Outcome: "skipped"}))

	got, err := idx.Transcript(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "First.", got[0].What)
	require.Equal(t, "Eileen", got[1].Who)
	require.False(t, got[1].TS.IsZero())

	sessions, err := idx.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "intro.vn", sessions[0].Script)
	require.Equal(t, 2, sessions[0].Lines)
}

func TestTranscriptRequiresSession(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.Error(t, idx.AppendTranscript(ctx, Entry{Session: "missing", LineID: "l", What: "x"}))
	require.Error(t, idx.StartSession(ctx, "", "x"))
}

func TestDuplicateSeqRejected(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.StartSession(ctx, "s", "a.vn"))
	require.NoError(t, idx.AppendTranscript(ctx, Entry{Session: "s", Seq: 0, LineID: "l", What: "x"}))
	require.Error(t, idx.AppendTranscript(ctx, Entry{Session: "s", Seq: 0, LineID: "l", What: "y"}))
}
