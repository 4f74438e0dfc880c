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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"govn/internal/character"
	"govn/internal/dialogue"
	applog "govn/internal/log"
	"govn/internal/textlayout"
)

// ErrQuit is returned by the terminal when the player asks to leave.
var ErrQuit = errors.New("presenter: quit")

// TerminalOptions tune the terminal presenter.
type TerminalOptions struct {
	// CharDelay is the time between two characters of slow text; zero shows text at once.
	CharDelay time.Duration
	// AFMTime is the auto-forward wait in seconds per 10 characters.
	AFMTime float64
	// Width caps the text box; zero uses the screen width.
	Width int
	// OnSkip is called when the player toggles skipping with Tab.
	OnSkip func()
	// OnRollback is called when the player asks to go back a line. A true
	// result abandons the line on screen.
	OnRollback func() bool
}

// afmBonus is added to every line length before computing the auto-forward wait.
const afmBonus = 5

// AFMDelay returns the auto-forward wait for a phase revealing length bytes.
func AFMDelay(length int, afmTime float64) time.Duration {
	if length <= 0 || afmTime <= 0 {
		return 0
	}
	return time.Duration(float64(length+afmBonus) / 10 * afmTime * float64(time.Second))
}

// Terminal draws the dialogue box on a tcell screen and reads the keyboard.
//
// Keys: Enter, Space or a mouse click continue (when dismissing is allowed),
// f rolls forward, b or PgUp rolls back, Tab toggles skipping, q or Ctrl-C quits. A key pressed while
// text is still appearing shows the rest of the phase at once; roll and skip keys then
// also act in the interaction that follows.
type Terminal struct {
	screen tcell.Screen
	opt    TerminalOptions
	events chan tcell.Event
	quit   chan struct{}
	once   sync.Once
	log    *slog.Logger

	style     character.Style
	who       string
	box       textlayout.TextBox
	shown     int
	indicator dialogue.IndicatorKind
	position  string
	pending   keyAction // pressed during the reveal, handled by the next Interact
}

// NewTerminal takes over screen, or the real terminal when screen is nil.
func NewTerminal(screen tcell.Screen, opt TerminalOptions) (*Terminal, error) {
	if screen == nil {
		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	screen.EnableMouse()
	screen.Clear()
	t := &Terminal{
		screen: screen,
		opt:    opt,
		events: make(chan tcell.Event, 16),
		quit:   make(chan struct{}),
		log:    applog.WithComponent("presenter"),
	}
	go t.pump()
	return t, nil
}

func (t *Terminal) pump() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case t.events <- ev:
		case <-t.quit:
			return
		}
	}
}

// Close restores the terminal.
func (t *Terminal) Close() {
	t.once.Do(func() {
		close(t.quit)
		t.screen.Fini()
	})
}

func (t *Terminal) SetStyle(s character.Style) { t.style = s }

func (t *Terminal) Render(ctx context.Context, who string, phase dialogue.RevealPhase) (dialogue.Rendered, error) {
	t.who = who
	plain, offs := dialogue.PlainText(phase.Text, phase.Start, phase.End)
	t.box = textlayout.WrapColumns(plain, t.cols())
	t.indicator = dialogue.IndicatorNone
	t.position = phase.IndicatorPosition
	t.pending = keyNone

	start, end := offs[0], offs[1]
	if !phase.Slow || t.opt.CharDelay <= 0 {
		start = end
	}
	if err := t.reveal(ctx, start, end); err != nil {
		return nil, err
	}
	dialogue.SlowDone(t, phase)
	return dialogue.TextHandle(phase.Text), nil
}

// reveal shows the box text up to from and then one rune per CharDelay until end.
func (t *Terminal) reveal(ctx context.Context, from, end int) error {
	t.shown = from
	t.draw()
	if from >= end {
		return nil
	}
	tick := time.NewTicker(t.opt.CharDelay)
	defer tick.Stop()
	for t.shown < end {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			_, size := utf8.DecodeRuneInString(t.box.Text[t.shown:])
			t.shown += size
		case ev := <-t.events:
			switch a := t.key(ev); a {
			case keyQuit:
				return ErrQuit
			case keyNone:
				continue
			case keyRollForward, keyRollback, keySkip:
				t.pending = a
				t.shown = end
			default:
				t.shown = end
			}
		}
		t.draw()
	}
	return nil
}

func (t *Terminal) Interact(ctx context.Context, r dialogue.Rendered, phase dialogue.RevealPhase, dismissAllowed bool) (dialogue.InteractResult, error) {
	t.indicator = phase.Indicator
	t.shown = len(t.box.Text)
	t.draw()
	defer func() {
		t.indicator = dialogue.IndicatorNone
	}()

	var timer <-chan time.Time
	switch {
	case phase.Timed():
		timer = time.After(phase.Duration())
	case phase.AFMLength > 0 && t.opt.AFMTime > 0:
		timer = time.After(AFMDelay(phase.AFMLength, t.opt.AFMTime))
	}
	if a := t.pending; a != keyNone {
		t.pending = keyNone
		if res, done, err := t.act(a, phase, dismissAllowed); done {
			return res, err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return dialogue.InteractCompleted, ctx.Err()
		case <-timer:
			return dialogue.InteractCompleted, nil
		case ev := <-t.events:
			if res, done, err := t.act(t.key(ev), phase, dismissAllowed); done {
				return res, err
			}
		}
	}
}

// act applies a key to the waiting phase; done is false when the key changes nothing.
func (t *Terminal) act(a keyAction, phase dialogue.RevealPhase, dismissAllowed bool) (res dialogue.InteractResult, done bool, err error) {
	switch a {
	case keyQuit:
		return dialogue.InteractCompleted, true, ErrQuit
	case keyContinue:
		if dismissAllowed {
			return dialogue.InteractCompleted, true, nil
		}
	case keyRollForward:
		if phase.RollForward {
			t.log.Debug("roll forward", slog.Int("phase", phase.Index))
			return dialogue.InteractAbandoned, true, nil
		}
	case keyRollback:
		if t.opt.OnRollback != nil && t.opt.OnRollback() {
			return dialogue.InteractAbandoned, true, nil
		}
	case keySkip:
		if t.opt.OnSkip != nil {
			t.opt.OnSkip()
		}
		return dialogue.InteractCompleted, true, nil
	}
	return dialogue.InteractCompleted, false, nil
}

type keyAction int

const (
	keyNone keyAction = iota
	keyContinue
	keyRollForward
	keyRollback
	keySkip
	keyQuit
)

// key classifies an input event. Resize events redraw and count as none.
func (t *Terminal) key(ev tcell.Event) keyAction {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
		t.box = textlayout.WrapColumns(t.box.Text, t.cols())
		t.draw()
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			return keyContinue
		}
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEnter:
			return keyContinue
		case tcell.KeyTab:
			return keySkip
		case tcell.KeyPgUp:
			return keyRollback
		case tcell.KeyCtrlC:
			return keyQuit
		case tcell.KeyRune:
			switch ev.Rune() {
			case ' ':
				return keyContinue
			case 'f':
				return keyRollForward
			case 'b':
				return keyRollback
			case 'q':
				return keyQuit
			}
		}
	}
	return keyNone
}

func (t *Terminal) FireLifecycle(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
	t.style.Fire(ev, meta)
}

func (t *Terminal) FireSustainHooks()         {}
func (t *Terminal) Checkpoint()               {}
func (t *Terminal) RestoreAfterRollback(bool) {}

// ClearTransientOverlays blanks the dialogue box.
func (t *Terminal) ClearTransientOverlays() {
	t.who = ""
	t.box = textlayout.TextBox{}
	t.shown = 0
	t.draw()
}

func (t *Terminal) cols() int {
	w, _ := t.screen.Size()
	cols := w - 4
	if t.opt.Width > 0 && t.opt.Width < cols {
		cols = t.opt.Width
	}
	return max(cols, 10)
}

// Indicator glyphs by kind.
var indicatorGlyphs = map[dialogue.IndicatorKind]rune{
	dialogue.IndicatorPause:      '▸',
	dialogue.IndicatorTimedPause: '…',
	dialogue.IndicatorFinal:      '▼',
}

// draw paints the box at the bottom of the screen with the name on its top border.
func (t *Terminal) draw() {
	s := t.screen
	s.Clear()
	w, h := s.Size()
	lines := t.box.Visible(t.shown)
	boxH := max(len(t.box.Lines), 3) + 2
	top := max(h-boxH, 0)

	border := tcell.StyleDefault.Foreground(tcell.ColorGray)
	if c, ok := t.style.WindowArgs["border_color"].(string); ok {
		border = border.Foreground(tcell.GetColor(c))
	}
	drawFrame(s, 0, top, w, boxH, border)

	if t.who != "" {
		name := tcell.StyleDefault.Bold(true)
		if c, ok := t.style.WhoArgs["color"].(string); ok {
			name = name.Foreground(tcell.GetColor(c))
		}
		drawText(s, 2, top, " "+t.who+" ", name)
	}
	text := tcell.StyleDefault
	if c, ok := t.style.WhatArgs["color"].(string); ok {
		text = text.Foreground(tcell.GetColor(c))
	}
	x, y := 2, top+1
	for i, ln := range lines {
		x = drawText(s, 2, top+1+i, ln, text)
		y = top + 1 + i
	}

	if g, ok := indicatorGlyphs[t.indicator]; ok {
		if t.position == dialogue.PositionFixed {
			x, y = w-3, top+boxH-2
		} else {
			x++
		}
		s.SetContent(x, y, g, nil, text.Bold(true))
	}
	s.Show()
}

func drawText(s tcell.Screen, x, y int, str string, style tcell.Style) int {
	for _, r := range str {
		s.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func drawFrame(s tcell.Screen, x, y, w, h int, style tcell.Style) {
	if w < 2 || h < 2 {
		return
	}
	for i := x + 1; i < x+w-1; i++ {
		s.SetContent(i, y, tcell.RuneHLine, nil, style)
		s.SetContent(i, y+h-1, tcell.RuneHLine, nil, style)
	}
	for j := y + 1; j < y+h-1; j++ {
		s.SetContent(x, j, tcell.RuneVLine, nil, style)
		s.SetContent(x+w-1, j, tcell.RuneVLine, nil, style)
	}
	s.SetContent(x, y, tcell.RuneULCorner, nil, style)
	s.SetContent(x+w-1, y, tcell.RuneURCorner, nil, style)
	s.SetContent(x, y+h-1, tcell.RuneLLCorner, nil, style)
	s.SetContent(x+w-1, y+h-1, tcell.RuneLRCorner, nil, style)
}
