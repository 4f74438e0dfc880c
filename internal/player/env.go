/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package player

import (
	"context"
	"fmt"
	"strings"

	"govn/internal/character"
	"govn/internal/dialogue"
)

// lineEnv is the engine as seen by the character saying one line.
type lineEnv struct {
	p      *Player
	seen   bool
	sink   *trackingSink
	logged []string
}

func (e *lineEnv) Policy() dialogue.RuntimePolicy { return e.p.History.Policy(e.seen) }
func (e *lineEnv) Sink() dialogue.Sink            { return e.sink }
func (e *lineEnv) Log(line string)                { e.logged = append(e.logged, line) }
func (e *lineEnv) SwitchMode(mode string)         { e.p.setMode(mode) }

func (e *lineEnv) AllCallbacks() []character.Callback { return e.p.Registry.AllCallbacks() }

// spoken splits what Say logged into speaker and text.
func (e *lineEnv) spoken() (who, what string) {
	logged := e.logged
	for len(logged) > 0 && logged[len(logged)-1] == "" {
		logged = logged[:len(logged)-1]
	}
	switch len(logged) {
	case 0:
		return "", ""
	case 1:
		return "", logged[0]
	default:
		return logged[0], logged[1]
	}
}

// EvalCondition understands a variable name, optionally prefixed with "not",
// and the literals True and False.
func (e *lineEnv) EvalCondition(expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	negate := false
	if rest, ok := strings.CutPrefix(expr, "not "); ok {
		negate, expr = true, strings.TrimSpace(rest)
	}
	var v bool
	switch expr {
	case "True", "true":
		v = true
	case "False", "false":
		v = false
	default:
		raw, ok := e.p.Vars[expr]
		if !ok {
			return false, fmt.Errorf("unknown variable %q", expr)
		}
		switch t := raw.(type) {
		case bool:
			v = t
		case string:
			v = t != ""
		case int:
			v = t != 0
		case nil:
			v = false
		default:
			v = true
		}
	}
	return v != negate, nil
}

// ResolveName looks a dynamic name up in the player variables.
func (e *lineEnv) ResolveName(expr string) (string, error) {
	raw, ok := e.p.Vars[expr]
	if !ok {
		return "", fmt.Errorf("unknown variable %q", expr)
	}
	return fmt.Sprint(raw), nil
}

// trackingSink wraps the presenter: checkpoints go to the history and renders
// are counted. Character callbacks fire here when the presenter does not
// handle styles itself.
type trackingSink struct {
	dialogue.Sink
	p       *Player
	lineID  string
	pos     int
	who     string
	renders int
	style   character.Style
}

func (s *trackingSink) SetStyle(st character.Style) {
	if in, ok := s.Sink.(character.Styler); ok {
		in.SetStyle(st)
		return
	}
	s.style = st
}

func (s *trackingSink) Render(ctx context.Context, who string, phase dialogue.RevealPhase) (dialogue.Rendered, error) {
	s.who = who
	s.renders++
	return s.Sink.Render(ctx, who, phase)
}

func (s *trackingSink) FireLifecycle(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
	s.Sink.FireLifecycle(ev, meta)
	s.style.Fire(ev, meta)
}

// Checkpoint records the line in the rollback log unless the player just
// rolled back from it.
func (s *trackingSink) Checkpoint() {
	if !s.p.rollingBack() {
		s.p.History.Checkpoint(s.lineID, s.who, s.pos)
	}
	s.Sink.Checkpoint()
}

func (s *trackingSink) RestoreAfterRollback(v bool) {
	s.p.History.RestoreAfterRollback(v)
	s.Sink.RestoreAfterRollback(v)
}
