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
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"
	"govn/internal/dialogue"
)

func newSimTerminal(t *testing.T, opt TerminalOptions) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(sim, opt)
	require.NoError(t, err)
	sim.SetSize(60, 20)
	t.Cleanup(term.Close)
	return term, sim
}

func screenText(s tcell.Screen) string {
	w, h := s.Size()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := s.GetContent(x, y)
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func key(k tcell.Key, r rune) tcell.Event {
	return tcell.NewEventKey(k, r, tcell.ModNone)
}

func phaseOf(text string) dialogue.RevealPhase {
	return dialogue.RevealPhase{End: len(text), Text: text, IsLast: true, Indicator: dialogue.IndicatorFinal}
}

func TestTerminalRenderDrawsNameAndText(t *testing.T) {
	term, sim := newSimTerminal(t, TerminalOptions{})
	r, err := term.Render(context.Background(), "Eileen", phaseOf("Good morning."))
	require.NoError(t, err)
	require.Equal(t, "Good morning.", r.Text())
	got := screenText(sim)
	require.Contains(t, got, " Eileen ")
	require.Contains(t, got, "Good morning.")
}

func TestTerminalInteractContinue(t *testing.T) {
	term, _ := newSimTerminal(t, TerminalOptions{})
	p := phaseOf("Hi.")
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)

	term.events <- key(tcell.KeyEnter, 0)
	res, err := term.Interact(context.Background(), r, p, true)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractCompleted, res)
}

func TestTerminalDismissNotAllowedWaitsForTimer(t *testing.T) {
	term, _ := newSimTerminal(t, TerminalOptions{})
	delay := 0.05
	p := phaseOf("Hold on.")
	p.Delay = &delay
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)

	term.events <- key(tcell.KeyRune, ' ')
	start := time.Now()
	res, err := term.Interact(context.Background(), r, p, false)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractCompleted, res)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestTerminalRollForward(t *testing.T) {
	term, _ := newSimTerminal(t, TerminalOptions{})
	p := phaseOf("Again.")
	p.RollForward = true
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)

	term.events <- key(tcell.KeyRune, 'f')
	res, err := term.Interact(context.Background(), r, p, true)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractAbandoned, res)
}

func TestTerminalRollback(t *testing.T) {
	calls := 0
	term, _ := newSimTerminal(t, TerminalOptions{OnRollback: func() bool {
		calls++
		return calls > 1
	}})
	p := phaseOf("Back.")
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)

	// the first request finds nothing to roll back to
	term.events <- key(tcell.KeyRune, 'b')
	term.events <- key(tcell.KeyPgUp, 0)
	res, err := term.Interact(context.Background(), r, p, true)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractAbandoned, res)
	require.Equal(t, 2, calls)
}

func TestTerminalQuitAndSkip(t *testing.T) {
	skipped := 0
	term, _ := newSimTerminal(t, TerminalOptions{OnSkip: func() { skipped++ }})
	p := phaseOf("...")
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)

	term.events <- key(tcell.KeyTab, 0)
	res, err := term.Interact(context.Background(), r, p, true)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractCompleted, res)
	require.Equal(t, 1, skipped)

	term.events <- key(tcell.KeyRune, 'q')
	_, err = term.Interact(context.Background(), r, p, true)
	require.ErrorIs(t, err, ErrQuit)
}

func TestTerminalInteractCancelled(t *testing.T) {
	term, _ := newSimTerminal(t, TerminalOptions{})
	p := phaseOf("Wait.")
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = term.Interact(ctx, r, p, true)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTerminalSlowRevealCompletesOnKey(t *testing.T) {
	term, sim := newSimTerminal(t, TerminalOptions{CharDelay: time.Hour})
	p := phaseOf("Slowly now.")
	p.Slow = true
	term.events <- key(tcell.KeyEnter, 0)
	_, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)
	require.Contains(t, screenText(sim), "Slowly now.")
}

func TestTerminalStripsStyleTags(t *testing.T) {
	term, sim := newSimTerminal(t, TerminalOptions{CharDelay: time.Hour})
	text := "{b}Bold{/b} move."
	p := phaseOf(text)
	p.Start = len("{b}Bold{/b}")
	p.Slow = true
	term.events <- key(tcell.KeyEnter, 0)
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)
	require.Equal(t, text, r.Text())
	require.Equal(t, "Bold move.", term.box.Text)
	require.Equal(t, len("Bold move."), term.shown)
	got := screenText(sim)
	require.Contains(t, got, "Bold move.")
	require.NotContains(t, got, "{b}")
}

func TestTerminalRollbackPressedDuringReveal(t *testing.T) {
	calls := 0
	term, sim := newSimTerminal(t, TerminalOptions{CharDelay: time.Hour, OnRollback: func() bool {
		calls++
		return true
	}})
	p := phaseOf("Not yet shown.")
	p.Slow = true
	term.events <- key(tcell.KeyRune, 'b')
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)
	require.Contains(t, screenText(sim), "Not yet shown.")
	require.Zero(t, calls)

	res, err := term.Interact(context.Background(), r, p, true)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractAbandoned, res)
	require.Equal(t, 1, calls)
}

func TestTerminalRollForwardPressedDuringReveal(t *testing.T) {
	term, _ := newSimTerminal(t, TerminalOptions{CharDelay: time.Hour})
	p := phaseOf("Seen before.")
	p.Slow = true
	p.RollForward = true
	term.events <- key(tcell.KeyRune, 'f')
	r, err := term.Render(context.Background(), "", p)
	require.NoError(t, err)
	res, err := term.Interact(context.Background(), r, p, true)
	require.NoError(t, err)
	require.Equal(t, dialogue.InteractAbandoned, res)
}

func TestAFMDelay(t *testing.T) {
	require.Zero(t, AFMDelay(0, 1.5))
	require.Zero(t, AFMDelay(10, 0))
	require.Equal(t, 3*time.Second, AFMDelay(15, 1.5))
}
