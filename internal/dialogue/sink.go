/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SkipMode mirrors the engine's skipping state.
type SkipMode int

const (
	SkipOff SkipMode = iota
	SkipSlow
	SkipFast
)

func (m SkipMode) String() string {
	switch m {
	case SkipSlow:
		return "slow"
	case SkipFast:
		return "fast"
	default:
		return "off"
	}
}

// RuntimePolicy is the engine state captured when a line starts. Run never
// reads engine state again until the next line.
type RuntimePolicy struct {
	Skipping         SkipMode
	SkipUnseen       bool // preference: skip lines the player has not seen yet
	SeenCurrent      bool // the line being shown was seen in an earlier playthrough
	AfterRollback    bool
	InRollback       bool
	RollForward      bool // roll-forward data is available for this interaction
	SlowEnabled      bool // preference: reveal text character by character
	AFMEnabled       bool // preference: auto-forward mode is on
	DismissAllowed   bool
	ImplicitWithNone bool
}

// Indicators names the click-to-continue cues configured for a character.
// An empty name means the cue is not configured.
type Indicators struct {
	Final      string
	Pause      string
	TimedPause string
}

// Indicator positions.
const (
	PositionNestled = "nestled"
	PositionFixed   = "fixed"
)

// Options are the per-call display arguments of a character.
type Options struct {
	Interact          bool
	Slow              bool
	AFM               bool
	AllAtOnce         bool
	Indicators        Indicators
	IndicatorPosition string
	ForceIndicator    bool
	// WithNone clears transient overlays after the line; nil defers to the policy.
	WithNone     *bool
	Checkpoint   bool
	Type         string
	CallbackArgs map[string]any
}

// DefaultOptions returns the display arguments of a plain interactive line.
func DefaultOptions() Options {
	return Options{
		Interact:          true,
		Slow:              true,
		AFM:               true,
		IndicatorPosition: PositionNestled,
		Checkpoint:        true,
		Type:              "say",
	}
}

// IndicatorKind is the display hint for the cue shown at the end of a phase.
type IndicatorKind int

const (
	IndicatorNone IndicatorKind = iota
	IndicatorPause
	IndicatorTimedPause
	IndicatorFinal
)

func (k IndicatorKind) String() string {
	switch k {
	case IndicatorPause:
		return "pause"
	case IndicatorTimedPause:
		return "timed-pause"
	case IndicatorFinal:
		return "final"
	default:
		return "none"
	}
}

// LifecycleEvent names a character callback event.
type LifecycleEvent string

const (
	EventBegin    LifecycleEvent = "begin"
	EventShow     LifecycleEvent = "show"
	EventShowDone LifecycleEvent = "show_done"
	EventSlowDone LifecycleEvent = "slow_done"
	EventEnd      LifecycleEvent = "end"
)

// LifecycleMeta accompanies every lifecycle event. Phase is -1 for begin and end.
type LifecycleMeta struct {
	Interact bool
	Type     string
	Args     map[string]any
	Phase    int
}

// RevealPhase describes one step of a line. Text is cumulative: everything
// revealed so far, not just the new slice starting at Start.
type RevealPhase struct {
	Index             int
	Start             int
	End               int
	Text              string
	IsLast            bool
	Delay             *float64
	Indicator         IndicatorKind
	IndicatorName     string
	IndicatorPosition string
	Slow              bool
	Blocking          bool
	RollForward       bool
	AFMLength         int
	Meta              LifecycleMeta
}

// Timed reports whether the phase ends in a pause with a definite length.
func (p RevealPhase) Timed() bool { return p.Delay != nil }

// Duration returns the pause length of a timed phase.
func (p RevealPhase) Duration() time.Duration {
	return PauseSegment{Delay: p.Delay}.Duration()
}

// Rendered is what the Sink hands back after drawing a phase.
type Rendered interface {
	Text() string
}

// TextHandle is the simplest Rendered: the text itself.
type TextHandle string

func (h TextHandle) Text() string { return string(h) }

// InteractResult tells Run how a wait ended.
type InteractResult int

const (
	InteractCompleted InteractResult = iota
	// InteractAbandoned means roll-forward (or a no-wait line) ended the wait;
	// the remaining phases are skipped.
	InteractAbandoned
)

// Sink is the presentation layer. Run calls it from a single goroutine and
// never overlaps two phases.
type Sink interface {
	Render(ctx context.Context, who string, phase RevealPhase) (Rendered, error)
	// Interact blocks until the player, a timer or roll-forward ends the wait.
	// A cancelled context is returned as an error.
	Interact(ctx context.Context, r Rendered, phase RevealPhase, dismissAllowed bool) (InteractResult, error)
	FireLifecycle(ev LifecycleEvent, meta LifecycleMeta)
	FireSustainHooks()
	Checkpoint()
	RestoreAfterRollback(v bool)
	ClearTransientOverlays()
}

// SlowDone is called by a renderer once the slow reveal of phase has finished.
// It fires slow_done and returns the pause the renderer should schedule, if any.
func SlowDone(sink Sink, phase RevealPhase) (time.Duration, bool) {
	sink.FireLifecycle(EventSlowDone, phase.Meta)
	if !phase.Timed() {
		return 0, false
	}
	return phase.Duration(), true
}

// ErrRenderContract is matched by every RenderContractError.
var ErrRenderContract = errors.New("dialogue: render contract violated")

// RenderContractError reports a Sink that did not produce the text it was asked to show.
type RenderContractError struct {
	Phase  int
	Reason string
}

func (e *RenderContractError) Error() string {
	return fmt.Sprintf("dialogue: phase %d: %s", e.Phase, e.Reason)
}

func (e *RenderContractError) Unwrap() error { return ErrRenderContract }

// Outcome is the result of Run.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeCompleted
	OutcomeAbandoned
	// OutcomeSkipped is returned when fast skipping bypassed the line entirely.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}
