/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package presenter

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"govn/internal/character"
	"govn/internal/dialogue"
)

func runLine(t *testing.T, h *Headless, who, markup string) (dialogue.Outcome, error) {
	t.Helper()
	pr, err := dialogue.Parse(markup)
	require.NoError(t, err)
	policy := dialogue.RuntimePolicy{SlowEnabled: true, DismissAllowed: true, ImplicitWithNone: true}
	return dialogue.Run(context.Background(), who, pr, policy, dialogue.DefaultOptions(), h)
}

func TestHeadlessRecordsPhasesAndEvents(t *testing.T) {
	h := NewHeadless(true)
	out, err := runLine(t, h, "Eileen", "Hello{w} world")
	require.NoError(t, err)
	require.Equal(t, dialogue.OutcomeCompleted, out)
	require.Equal(t, []string{"Hello", "Hello world"}, h.Rendered())
	require.Equal(t, []dialogue.LifecycleEvent{
		dialogue.EventBegin,
		dialogue.EventShow, dialogue.EventSlowDone, dialogue.EventShowDone,
		dialogue.EventShow, dialogue.EventSlowDone, dialogue.EventShowDone,
		dialogue.EventEnd,
	}, h.Events())

	var ops []Op
	for _, c := range h.Calls() {
		if c.Op != OpLifecycle {
			ops = append(ops, c.Op)
		}
	}
	require.Equal(t, []Op{OpRender, OpInteract, OpSustain, OpRender, OpInteract, OpCheckpoint, OpClear}, ops)
}

func TestHeadlessQueuedAbandon(t *testing.T) {
	h := NewHeadless(true)
	h.Queue(dialogue.InteractAbandoned)
	out, err := runLine(t, h, "", "one{p}two")
	require.NoError(t, err)
	require.Equal(t, dialogue.OutcomeAbandoned, out)
	require.Equal(t, []string{"one"}, h.Rendered())

	h.Reset()
	require.Empty(t, h.Calls())
}

func TestHeadlessTimedPauseSleeps(t *testing.T) {
	h := NewHeadless(false)
	var slept []time.Duration
	h.sleepF = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	_, err := runLine(t, h, "", "a{w=2}b{w=0.5}")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Second, 500 * time.Millisecond}, slept)

	h = NewHeadless(true)
	h.sleepF = func(context.Context, time.Duration) error {
		t.Fatalf("instant presenter must not sleep")
		return nil
	}
	_, err = runLine(t, h, "", "a{w=2}b")
	require.NoError(t, err)
}

func TestHeadlessStyleCallbacks(t *testing.T) {
	h := NewHeadless(true)
	var got []dialogue.LifecycleEvent
	h.SetStyle(character.Style{Callbacks: []character.Callback{
		func(ev dialogue.LifecycleEvent, _ dialogue.LifecycleMeta) { got = append(got, ev) },
	}})
	_, err := runLine(t, h, "", "hi")
	require.NoError(t, err)
	require.Equal(t, h.Events(), got)
}

func TestHeadlessOut(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeadless(true)
	h.Out = &buf
	_, err := runLine(t, h, "Eileen", "Hello{p}there.")
	require.NoError(t, err)
	_, err = runLine(t, h, "", "Rain.")
	require.NoError(t, err)
	require.Equal(t, "Eileen: Hellothere.\nRain.\n", buf.String())
}

func TestHeadlessCancelledContext(t *testing.T) {
	h := NewHeadless(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pr, err := dialogue.Parse("x")
	require.NoError(t, err)
	_, err = dialogue.Run(ctx, "", pr, dialogue.RuntimePolicy{}, dialogue.DefaultOptions(), h)
	require.ErrorIs(t, err, context.Canceled)
}
