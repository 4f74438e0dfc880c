/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps the rollback log of a play session and the live engine
// flags that the reveal sequencer reads as a RuntimePolicy.
package history

import (
	"sync"
	"time"
)

// Checkpoint marks a point the player can roll back to. Pos is the script
// position of the line, so the player can resume from it.
type Checkpoint struct {
	LineID string
	Who    string
	Pos    int
	TS     time.Time
}

// Config caps the log.
type Config struct {
	// Limit is the number of checkpoints kept; older ones are dropped (0 means 128).
	Limit int
	// MinInterval coalesces checkpoints of the same line captured within the interval.
	MinInterval time.Duration
}

// Log is a bounded rollback stack with a roll-forward stack. It is safe for concurrent use.
type Log struct {
	cfg     Config
	mu      sync.Mutex
	back    []Checkpoint
	forward []Checkpoint
}

func NewLog(cfg Config) *Log {
	if cfg.Limit <= 0 {
		cfg.Limit = 128
	}
	return &Log{cfg: cfg}
}

// Push records a checkpoint. When it replays the next roll-forward entry, that
// entry moves back onto the rollback stack; any other checkpoint drops the
// roll-forward stack. It reports whether the push was a replay.
func (l *Log) Push(c Checkpoint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.forward); n > 0 && l.forward[n-1].LineID == c.LineID {
		l.forward = l.forward[:n-1]
		l.back = append(l.back, c)
		l.enforceCapLocked()
		return true
	}
	l.forward = nil
	if n := len(l.back); n > 0 {
		last := l.back[n-1]
		if last.LineID == c.LineID && c.TS.Sub(last.TS) < l.cfg.MinInterval {
			l.back[n-1] = c
			return false
		}
	}
	l.back = append(l.back, c)
	l.enforceCapLocked()
	return false
}

// Rollback pops the newest checkpoint onto the roll-forward stack.
func (l *Log) Rollback() (Checkpoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.back)
	if n == 0 {
		return Checkpoint{}, false
	}
	c := l.back[n-1]
	l.back = l.back[:n-1]
	l.forward = append(l.forward, c)
	return c, true
}

// RollForward pops from the roll-forward stack back onto the rollback stack.
func (l *Log) RollForward() (Checkpoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.forward)
	if n == 0 {
		return Checkpoint{}, false
	}
	c := l.forward[n-1]
	l.forward = l.forward[:n-1]
	l.back = append(l.back, c)
	l.enforceCapLocked()
	return c, true
}

// Peek returns the next roll-forward entry without consuming it.
func (l *Log) Peek() (Checkpoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.forward); n > 0 {
		return l.forward[n-1], true
	}
	return Checkpoint{}, false
}

// Clear drops both stacks.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.back = nil
	l.forward = nil
}

// Stats returns the stack depths for diagnostics.
func (l *Log) Stats() (back, forward int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.back), len(l.forward)
}

func (l *Log) enforceCapLocked() {
	if over := len(l.back) - l.cfg.Limit; over > 0 {
		l.back = append([]Checkpoint{}, l.back[over:]...)
	}
}
