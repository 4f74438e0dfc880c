/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"sync"
	"time"

	"govn/internal/dialogue"
)

// Prefs are the player preferences that feed the runtime policy.
type Prefs struct {
	SlowEnabled      bool
	AFMEnabled       bool
	SkipUnseen       bool
	DismissAllowed   bool
	ImplicitWithNone bool
}

// State is the live engine state of one play session.
type State struct {
	mu            sync.Mutex
	log           *Log
	prefs         Prefs
	skipping      dialogue.SkipMode
	afterRollback bool
	inRollback    bool
}

func NewState(cfg Config, prefs Prefs) *State {
	return &State{log: NewLog(cfg), prefs: prefs}
}

// Log exposes the underlying rollback log.
func (s *State) Log() *Log { return s.log }

func (s *State) Prefs() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *State) SetPrefs(p Prefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

func (s *State) SetSkipping(m dialogue.SkipMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipping = m
}

func (s *State) Skipping() dialogue.SkipMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipping
}

// Policy snapshots the state for one say call. seen tells whether the line
// about to be shown was read before.
func (s *State) Policy(seen bool) dialogue.RuntimePolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, fwd := s.log.Peek()
	return dialogue.RuntimePolicy{
		Skipping:         s.skipping,
		SkipUnseen:       s.prefs.SkipUnseen,
		SeenCurrent:      seen,
		AfterRollback:    s.afterRollback,
		InRollback:       s.inRollback,
		RollForward:      s.inRollback && fwd,
		SlowEnabled:      s.prefs.SlowEnabled,
		AFMEnabled:       s.prefs.AFMEnabled,
		DismissAllowed:   s.prefs.DismissAllowed,
		ImplicitWithNone: s.prefs.ImplicitWithNone,
	}
}

// Checkpoint records that the line at pos was fully shown. Replaying a
// rolled-back line keeps the session in rollback until the roll-forward stack
// is used up.
func (s *State) Checkpoint(lineID, who string, pos int) {
	replay := s.log.Push(Checkpoint{LineID: lineID, Who: who, Pos: pos, TS: time.Now()})
	_, more := s.log.Peek()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !replay || !more {
		s.inRollback = false
		s.afterRollback = false
	}
}

// Rollback steps back one checkpoint and puts the session into rollback.
func (s *State) Rollback() (Checkpoint, bool) {
	c, ok := s.log.Rollback()
	if !ok {
		return c, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRollback = true
	s.afterRollback = true
	s.skipping = dialogue.SkipOff
	return c, true
}

// RollForwardInfo returns the checkpoint a roll-forward would land on.
func (s *State) RollForwardInfo() (Checkpoint, bool) {
	s.mu.Lock()
	in := s.inRollback
	s.mu.Unlock()
	if !in {
		return Checkpoint{}, false
	}
	return s.log.Peek()
}

func (s *State) AfterRollback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.afterRollback
}

// RestoreAfterRollback puts back the after-rollback flag saved before a no-wait interaction.
func (s *State) RestoreAfterRollback(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterRollback = v
}
