//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"govn/internal/character"
	"govn/internal/crash"
	"govn/internal/dialogue"
	applog "govn/internal/log"
	"govn/internal/presenter"
	"govn/internal/version"
)

// Run opens the desktop window and plays s in it until the script ends or the
// window is closed.
func Run(s Session) error {
	if s.Player == nil {
		return errors.New("ui: no player")
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("script", s.Name))
	defer crash.Recover(s.Player)

	fyneApp := app.NewWithID("govn")
	w := fyneApp.NewWindow(fmt.Sprintf("govn %s - %s", version.Version, s.Name))
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 960), 640)
	winH := max(prefs.IntWithFallback("window.height", 540), 360)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	sink := NewSink(s.CharDelay, s.AFMTime)
	sink.OnRollback = s.Player.Rollback
	sink.OnSkip = s.Player.ToggleSkip
	w.SetContent(sink.Content())
	w.Canvas().SetOnTypedKey(sink.TypedKey)
	s.Player.Sink = sink

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		defer crash.Recover(s.Player)
		res, err := s.Player.Play(ctx, s.Script, s.Name, s.Start)
		msg := fmt.Sprintf("The end. %d lines shown.", res.Shown)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("play failed", slog.Any("err", err))
			msg = "Error: " + err.Error()
		}
		fyne.Do(func() { sink.status.SetText(msg) })
		done <- err
	}()

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		cancel()
	})
	w.ShowAndRun()
	cancel()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type action int

const (
	actNone action = iota
	actContinue
	actRollForward
	actRollback
	actSkip
)

// Sink draws lines into fyne widgets. Render and Interact run on the play
// goroutine and hand widget updates to fyne.Do.
type Sink struct {
	CharDelay  time.Duration
	AFMTime    float64
	OnRollback func() bool
	OnSkip     func()

	name      *widget.Label
	text      *widget.Label
	indicator *widget.Label
	status    *widget.Label
	next      *widget.Button
	actions   chan action
	pending   action // pressed during the reveal, handled by the next Interact
	style     character.Style
}

func NewSink(charDelay time.Duration, afmTime float64) *Sink {
	s := &Sink{
		CharDelay: charDelay,
		AFMTime:   afmTime,
		name:      widget.NewLabel(""),
		text:      widget.NewLabel(""),
		indicator: widget.NewLabel(""),
		status:    widget.NewLabel("Enter or Space continues, B rolls back, F rolls forward, Tab skips"),
		actions:   make(chan action, 4),
	}
	s.name.TextStyle = fyne.TextStyle{Bold: true}
	s.text.Wrapping = fyne.TextWrapWord
	s.next = widget.NewButton("Continue", func() { s.send(actContinue) })
	return s
}

// Content is the window layout: status on top, the dialogue box at the bottom.
func (s *Sink) Content() fyne.CanvasObject {
	box := container.NewVBox(
		s.name,
		s.text,
		container.NewHBox(layout.NewSpacer(), s.indicator, s.next),
	)
	return container.NewBorder(s.status, box, nil, nil, layout.NewSpacer())
}

// TypedKey maps keyboard input to player actions.
func (s *Sink) TypedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyReturn, fyne.KeyEnter, fyne.KeySpace:
		s.send(actContinue)
	case fyne.KeyF:
		s.send(actRollForward)
	case fyne.KeyB, fyne.KeyPageUp:
		s.send(actRollback)
	case fyne.KeyTab:
		s.send(actSkip)
	}
}

func (s *Sink) send(a action) {
	select {
	case s.actions <- a:
	default:
	}
}

func (s *Sink) SetStyle(st character.Style) { s.style = st }

func (s *Sink) show(who, text, indicator string) {
	fyne.Do(func() {
		s.name.SetText(who)
		s.text.SetText(text)
		s.indicator.SetText(indicator)
	})
}

func (s *Sink) Render(ctx context.Context, who string, phase dialogue.RevealPhase) (dialogue.Rendered, error) {
	text, offs := dialogue.PlainText(phase.Text, phase.Start, phase.End)
	shown, end := offs[0], offs[1]
	if !phase.Slow || s.CharDelay <= 0 {
		shown = end
	}
	s.pending = actNone
	s.show(who, text[:shown], "")
	if shown < end {
		tick := time.NewTicker(s.CharDelay)
	reveal:
		for shown < end {
			select {
			case <-ctx.Done():
				tick.Stop()
				return nil, ctx.Err()
			case <-tick.C:
				_, size := utf8.DecodeRuneInString(text[shown:])
				shown += size
			case a := <-s.actions:
				if a != actContinue {
					s.pending = a
				}
				shown = end
				s.show(who, text, "")
				break reveal
			}
			s.show(who, text[:shown], "")
		}
		tick.Stop()
	}
	dialogue.SlowDone(s, phase)
	return dialogue.TextHandle(phase.Text), nil
}

// Indicator glyphs by kind.
var indicatorGlyphs = map[dialogue.IndicatorKind]string{
	dialogue.IndicatorPause:      "▸",
	dialogue.IndicatorTimedPause: "…",
	dialogue.IndicatorFinal:      "▼",
}

func (s *Sink) Interact(ctx context.Context, r dialogue.Rendered, phase dialogue.RevealPhase, dismissAllowed bool) (dialogue.InteractResult, error) {
	glyph := indicatorGlyphs[phase.Indicator]
	fyne.Do(func() { s.indicator.SetText(glyph) })
	defer fyne.Do(func() { s.indicator.SetText("") })

	var timer <-chan time.Time
	switch {
	case phase.Timed():
		timer = time.After(phase.Duration())
	case phase.AFMLength > 0 && s.AFMTime > 0:
		timer = time.After(presenter.AFMDelay(phase.AFMLength, s.AFMTime))
	}
	if a := s.pending; a != actNone {
		s.pending = actNone
		if res, done := s.act(a, phase, dismissAllowed); done {
			return res, nil
		}
	}
	for {
		select {
		case <-ctx.Done():
			return dialogue.InteractCompleted, ctx.Err()
		case <-timer:
			return dialogue.InteractCompleted, nil
		case a := <-s.actions:
			if res, done := s.act(a, phase, dismissAllowed); done {
				return res, nil
			}
		}
	}
}

func (s *Sink) act(a action, phase dialogue.RevealPhase, dismissAllowed bool) (dialogue.InteractResult, bool) {
	switch a {
	case actContinue:
		if dismissAllowed {
			return dialogue.InteractCompleted, true
		}
	case actRollForward:
		if phase.RollForward {
			return dialogue.InteractAbandoned, true
		}
	case actRollback:
		if s.OnRollback != nil && s.OnRollback() {
			return dialogue.InteractAbandoned, true
		}
	case actSkip:
		if s.OnSkip != nil {
			s.OnSkip()
		}
		return dialogue.InteractCompleted, true
	}
	return dialogue.InteractCompleted, false
}

func (s *Sink) FireLifecycle(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
	s.style.Fire(ev, meta)
}

func (s *Sink) FireSustainHooks()         {}
func (s *Sink) Checkpoint()               {}
func (s *Sink) RestoreAfterRollback(bool) {}

// ClearTransientOverlays empties the dialogue box.
func (s *Sink) ClearTransientOverlays() { s.show("", "", "") }
