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
	"fmt"
	"log/slog"

	applog "govn/internal/log"
)

// Run shows one line of dialogue spoken by who.
//
// Fast skipping bypasses the line (OutcomeSkipped). Otherwise each segment of
// pr becomes a phase: show, render, show_done and, when interacting, a wait.
// Roll-forward ending a wait stops the loop early with OutcomeAbandoned; the
// checkpoint and end event still happen. Any error aborts the call without a
// checkpoint and without the end event.
func Run(ctx context.Context, who string, pr ParseResult, policy RuntimePolicy, opts Options, sink Sink) (Outcome, error) {
	if sink == nil {
		return OutcomeUnknown, &RenderContractError{Phase: -1, Reason: "no sink"}
	}
	if err := pr.Validate(); err != nil {
		return OutcomeUnknown, fmt.Errorf("run: %w", err)
	}
	l := applog.WithOperation(applog.WithComponent("dialogue"), "run")

	if opts.Interact && policy.Skipping == SkipFast {
		sink.ClearTransientOverlays()
		l.Debug("line skipped", slog.String("who", who))
		return OutcomeSkipped, nil
	}

	meta := LifecycleMeta{Interact: opts.Interact, Type: opts.Type, Args: opts.CallbackArgs, Phase: -1}
	sink.FireLifecycle(EventBegin, meta)

	slow := opts.Slow && policy.SlowEnabled
	if policy.AfterRollback {
		slow = false
	} else if policy.Skipping != SkipOff && (policy.SkipUnseen || policy.SeenCurrent) {
		slow = false
	}

	segs := pr.Segments
	if opts.AllAtOnce || !opts.Interact {
		segs = []PauseSegment{{
			Start: pr.Segments[0].Start,
			End:   len(pr.Text),
			Delay: pr.Segments[len(pr.Segments)-1].Delay,
		}}
	}

	outcome := OutcomeCompleted
	for i, seg := range segs {
		last := i == len(segs)-1
		start := seg.Start
		if i == 0 && pr.SlowStart > start {
			start = pr.SlowStart
		}
		phaseMeta := meta
		phaseMeta.Phase = i
		phase := RevealPhase{
			Index:             i,
			Start:             start,
			End:               seg.End,
			Text:              pr.Text[:seg.End],
			IsLast:            last,
			Delay:             seg.Delay,
			IndicatorPosition: opts.IndicatorPosition,
			Slow:              slow,
			Blocking:          opts.Interact,
			RollForward:       policy.RollForward,
			Meta:              phaseMeta,
		}
		phase.Indicator, phase.IndicatorName = resolveIndicator(opts, last, seg.Delay)
		if opts.Interact && opts.AFM && policy.AFMEnabled {
			phase.AFMLength = seg.End - start
		}

		sink.FireLifecycle(EventShow, phaseMeta)
		r, err := sink.Render(ctx, who, phase)
		if err != nil {
			return OutcomeUnknown, fmt.Errorf("render phase %d: %w", i, err)
		}
		if r == nil {
			return OutcomeUnknown, &RenderContractError{Phase: i, Reason: "sink returned no rendered text"}
		}
		if got := r.Text(); got != phase.Text {
			return OutcomeUnknown, &RenderContractError{Phase: i, Reason: fmt.Sprintf("rendered %q, want %q", got, phase.Text)}
		}
		sink.FireLifecycle(EventShowDone, phaseMeta)
		l.Debug("phase shown",
			slog.Int("phase", i),
			slog.Int("end", seg.End),
			slog.String("indicator", phase.Indicator.String()),
			slog.Bool("slow", slow),
		)

		if !opts.Interact {
			continue
		}
		res, err := sink.Interact(ctx, r, phase, policy.DismissAllowed)
		if err != nil {
			return OutcomeUnknown, fmt.Errorf("interact phase %d: %w", i, err)
		}
		if res == InteractAbandoned {
			l.Debug("interaction abandoned", slog.Int("phase", i), slog.Int("phases", len(segs)))
			outcome = OutcomeAbandoned
			break
		}
		if !last {
			sink.FireSustainHooks()
		}
	}

	if opts.Interact {
		if !pr.NoWait {
			if opts.Checkpoint {
				sink.Checkpoint()
			}
		} else {
			sink.RestoreAfterRollback(policy.AfterRollback)
		}
		withNone := policy.ImplicitWithNone
		if opts.WithNone != nil {
			withNone = *opts.WithNone
		}
		if withNone {
			sink.ClearTransientOverlays()
		}
	}

	sink.FireLifecycle(EventEnd, meta)
	return outcome, nil
}

// resolveIndicator picks the cue for a phase. A cue that is not configured,
// a non-interactive line (unless forced) and a zero-length pause all give none.
func resolveIndicator(opts Options, last bool, delay *float64) (IndicatorKind, string) {
	kind, name := IndicatorPause, opts.Indicators.Pause
	switch {
	case last:
		kind, name = IndicatorFinal, opts.Indicators.Final
	case delay != nil && opts.Indicators.TimedPause != "":
		kind, name = IndicatorTimedPause, opts.Indicators.TimedPause
	}
	if name == "" {
		return IndicatorNone, ""
	}
	if !(opts.Interact || opts.ForceIndicator) {
		return IndicatorNone, ""
	}
	if delay != nil && *delay == 0 {
		return IndicatorNone, ""
	}
	return kind, name
}
