/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package presenter implements dialogue sinks: a headless one for automation
// and tests, and a terminal one built on tcell.
package presenter

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"govn/internal/character"
	"govn/internal/dialogue"
)

// Op names a recorded sink call.
type Op string

const (
	OpRender     Op = "render"
	OpInteract   Op = "interact"
	OpLifecycle  Op = "lifecycle"
	OpSustain    Op = "sustain"
	OpCheckpoint Op = "checkpoint"
	OpRestore    Op = "restore"
	OpClear      Op = "clear"
)

// Call is one recorded sink invocation. Only the fields of its Op are set.
type Call struct {
	Op      Op
	Who     string
	Phase   dialogue.RevealPhase
	Event   dialogue.LifecycleEvent
	Meta    dialogue.LifecycleMeta
	Dismiss bool
	Value   bool
}

// Headless is a Sink without a screen. Interactions complete at once unless
// results were queued with Queue; timed pauses sleep unless Instant is set.
// Out, when set, receives every finished line as "who: text".
type Headless struct {
	Instant bool
	Out     io.Writer

	mu     sync.Mutex
	queue  []dialogue.InteractResult
	calls  []Call
	style  character.Style
	sleepF func(ctx context.Context, d time.Duration) error
}

func NewHeadless(instant bool) *Headless { return &Headless{Instant: instant} }

// Queue appends scripted interaction results, consumed in order.
func (h *Headless) Queue(results ...dialogue.InteractResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, results...)
}

func (h *Headless) SetStyle(s character.Style) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.style = s
}

func (h *Headless) record(c Call) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

func (h *Headless) Render(ctx context.Context, who string, phase dialogue.RevealPhase) (dialogue.Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.record(Call{Op: OpRender, Who: who, Phase: phase})
	// the reveal is instantaneous, so slow_done follows the render directly
	dialogue.SlowDone(h, phase)
	if h.Out != nil && phase.IsLast {
		if who != "" {
			fmt.Fprintf(h.Out, "%s: %s\n", who, phase.Text)
		} else {
			fmt.Fprintln(h.Out, phase.Text)
		}
	}
	return dialogue.TextHandle(phase.Text), nil
}

func (h *Headless) Interact(ctx context.Context, r dialogue.Rendered, phase dialogue.RevealPhase, dismissAllowed bool) (dialogue.InteractResult, error) {
	if err := ctx.Err(); err != nil {
		return dialogue.InteractCompleted, err
	}
	h.record(Call{Op: OpInteract, Phase: phase, Dismiss: dismissAllowed})

	h.mu.Lock()
	if len(h.queue) > 0 {
		res := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()
		return res, nil
	}
	h.mu.Unlock()

	if phase.Timed() && !h.Instant {
		if err := h.sleep(ctx, phase.Duration()); err != nil {
			return dialogue.InteractCompleted, err
		}
	}
	return dialogue.InteractCompleted, nil
}

func (h *Headless) sleep(ctx context.Context, d time.Duration) error {
	if h.sleepF != nil {
		return h.sleepF(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (h *Headless) FireLifecycle(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
	h.record(Call{Op: OpLifecycle, Event: ev, Meta: meta})
	h.mu.Lock()
	style := h.style
	h.mu.Unlock()
	style.Fire(ev, meta)
}

func (h *Headless) FireSustainHooks()           { h.record(Call{Op: OpSustain}) }
func (h *Headless) Checkpoint()                 { h.record(Call{Op: OpCheckpoint}) }
func (h *Headless) RestoreAfterRollback(v bool) { h.record(Call{Op: OpRestore, Value: v}) }
func (h *Headless) ClearTransientOverlays()     { h.record(Call{Op: OpClear}) }

// Calls returns a copy of everything recorded so far.
func (h *Headless) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// Rendered returns the text of every render call in order.
func (h *Headless) Rendered() []string {
	var out []string
	for _, c := range h.Calls() {
		if c.Op == OpRender {
			out = append(out, c.Phase.Text)
		}
	}
	return out
}

// Events returns the lifecycle events fired so far.
func (h *Headless) Events() []dialogue.LifecycleEvent {
	var out []dialogue.LifecycleEvent
	for _, c := range h.Calls() {
		if c.Op == OpLifecycle {
			out = append(out, c.Event)
		}
	}
	return out
}

// Reset forgets recorded calls and queued results.
func (h *Headless) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	h.queue = nil
}
