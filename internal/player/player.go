/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package player walks a script line by line, handing each line to its
// character and keeping the seen-line registry and transcript up to date.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"govn/internal/character"
	"govn/internal/dialogue"
	"govn/internal/history"
	applog "govn/internal/log"
	"govn/internal/script"
	"govn/internal/storage"
	"govn/internal/telemetry"
)

// NarratorID is the character used for narration lines when defined.
const NarratorID = "narrator"

// Result summarises a Play call.
type Result struct {
	Session  string
	Shown    int
	Outcomes map[dialogue.Outcome]int
}

// Player runs scripts against a sink. Registry, History and Sink are
// required; Index, Telemetry and DataDir are optional.
type Player struct {
	Registry  *character.Registry
	History   *history.State
	Index     *storage.Index
	Sink      dialogue.Sink
	Telemetry *telemetry.Client
	// DataDir receives crash reports and autosaves.
	DataDir string
	// Vars back character conditions and dynamic names.
	Vars map[string]any

	mu       sync.Mutex
	session  string
	name     string
	pos      int
	lineID   string
	seq      int
	jump     int
	jumping  bool
	mode     string
	readback []string
}

// ErrNoSink is returned by Play when the player has nothing to show lines on.
var ErrNoSink = errors.New("player: no sink")

// Play shows the spoken lines of sc from position start (an index into
// sc.Spoken()) until the end or until ctx is cancelled. name labels the
// session in the transcript.
func (p *Player) Play(ctx context.Context, sc script.Script, name string, start int) (Result, error) {
	if p.Sink == nil {
		return Result{}, ErrNoSink
	}
	if p.Registry == nil {
		p.Registry = character.NewRegistry()
	}
	if p.History == nil {
		p.History = history.NewState(history.Config{}, history.Prefs{SlowEnabled: true, DismissAllowed: true, ImplicitWithNone: true})
	}

	id := uuid.NewString()
	p.mu.Lock()
	p.session, p.name, p.seq = id, name, 0
	p.mu.Unlock()
	ctx = applog.WithSession(ctx, id)
	l := applog.WithOperation(applog.WithComponent("player"), "play")
	if p.Index != nil {
		if err := p.Index.StartSession(ctx, id, name); err != nil {
			return Result{Session: id}, err
		}
	}

	lines := sc.Spoken()
	res := Result{Session: id, Outcomes: map[dialogue.Outcome]int{}}
	l.InfoContext(ctx, "session started", slog.String("script", name), slog.Int("lines", len(lines)), slog.Int("start", start))

	for pos := max(start, 0); pos < len(lines); pos++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p.mu.Lock()
		p.pos, p.lineID = pos, lines[pos].ID
		p.mu.Unlock()

		out, err := p.show(ctx, pos, lines[pos])
		if err != nil {
			return res, fmt.Errorf("line %d (%s): %w", lines[pos].LineNo, lines[pos].ID, err)
		}
		res.Outcomes[out]++
		if out != dialogue.OutcomeUnknown {
			res.Shown++
		}

		p.mu.Lock()
		if p.jumping {
			pos = p.jump - 1
			p.jumping = false
		}
		p.mu.Unlock()
	}
	l.InfoContext(ctx, "session finished", slog.Int("shown", res.Shown))
	return res, nil
}

// show says one line and records it.
func (p *Player) show(ctx context.Context, pos int, ln script.Line) (dialogue.Outcome, error) {
	ctx = applog.WithLine(ctx, ln.ID)
	l := applog.WithComponent("player")

	c := p.characterFor(ln)
	seen := false
	if p.Index != nil {
		var err error
		if seen, err = p.Index.Seen(ctx, ln.ID); err != nil {
			return dialogue.OutcomeUnknown, err
		}
	}
	if !seen && p.History.Skipping() != dialogue.SkipOff && !p.History.Prefs().SkipUnseen {
		l.DebugContext(ctx, "skipping stopped at unseen line")
		p.History.SetSkipping(dialogue.SkipOff)
	}

	var o character.Overrides
	if ln.Has(script.DirectiveNoInteract) {
		o.Interact = character.Ptr(false)
	}
	if ln.Has(script.DirectiveAllAtOnce) {
		o.AllAtOnce = character.Ptr(true)
	}

	env := &lineEnv{p: p, seen: seen, sink: &trackingSink{Sink: p.Sink, p: p, lineID: ln.ID, pos: pos}}
	out, err := c.Say(ctx, env, ln.Text, o)
	if err != nil {
		return out, err
	}
	if out == dialogue.OutcomeUnknown {
		l.DebugContext(ctx, "line hidden by condition")
		return out, nil
	}
	if p.rollingBack() {
		// the line is shown again after the rollback and recorded then
		l.DebugContext(ctx, "line left by rollback")
		return out, nil
	}

	who, what := env.spoken()
	p.mu.Lock()
	p.readback = append(p.readback, env.logged...)
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	if p.Index != nil {
		if err := p.Index.MarkSeen(ctx, ln.ID); err != nil {
			return out, err
		}
		err := p.Index.AppendTranscript(ctx, storage.Entry{
			Session: p.Session(),
			Seq:     seq,
			LineID:  ln.ID,
			Who:     who,
			What:    what,
			Outcome: out.String(),
		})
		if err != nil {
			return out, err
		}
	}
	interactive := c.Display.Interact && !ln.Has(script.DirectiveNoInteract)
	if p.Telemetry != nil {
		p.Telemetry.LineRevealed(out.String(), env.sink.renders, interactive)
	} else {
		telemetry.LineRevealed(out.String(), env.sink.renders, interactive)
	}
	return out, nil
}

func (p *Player) characterFor(ln script.Line) *character.Character {
	if ln.Type == script.LineNarration {
		if c, ok := p.Registry.Get(NarratorID); ok {
			return c
		}
		return p.Registry.Fallback("")
	}
	return p.Registry.Lookup(ln.Character, ln.Speaker)
}

// Rollback moves play back to the previous checkpoint. The line on screen is
// abandoned by the presenter; play resumes at the rolled-back line.
func (p *Player) Rollback() bool {
	c, ok := p.History.Rollback()
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jump, p.jumping = c.Pos, true
	applog.WithComponent("player").Debug("rollback", slog.String("line", c.LineID), slog.Int("pos", c.Pos))
	return true
}

// ToggleSkip switches between normal play and fast skipping.
func (p *Player) ToggleSkip() {
	if p.History.Skipping() == dialogue.SkipOff {
		p.History.SetSkipping(dialogue.SkipFast)
		return
	}
	p.History.SetSkipping(dialogue.SkipOff)
}

// Session returns the id of the current session.
func (p *Player) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Readback returns the dialogue log: speaker, text and a blank entry per line.
func (p *Player) Readback() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.readback...)
}

func (p *Player) rollingBack() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jumping
}

func (p *Player) setMode(mode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}
