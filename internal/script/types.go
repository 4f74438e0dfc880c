/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// Script is a parsed dialogue script: scenes of lines in play order.
type Script struct {
	Scenes []Scene
}

type Scene struct {
	Title string
	Lines []Line
}

// LineType indicates the kind of a script line.
// Dialogue:  NAME: text
// Narration: NARRATOR: text or CAPTION: text (shown without a name)
// Note:      lines starting with ";" are author notes and never shown

type LineType int

const (
	LineUnknown LineType = iota
	LineDialogue
	LineNarration
	LineNote
)

func (t LineType) String() string {
	switch t {
	case LineDialogue:
		return "dialogue"
	case LineNarration:
		return "narration"
	case LineNote:
		return "note"
	default:
		return "unknown"
	}
}

// Line is a single logical line (possibly with continuations).
// Speaker is the name as written, Character the lookup id derived from it
// (lower-cased, spaces as underscores). Text still carries its markup tags.

type Line struct {
	ID         string
	Type       LineType
	Speaker    string
	Character  string
	Text       string
	Directives []string
	LineNo     int // 1-based starting line number in the source

	// cols holds the 1-based source column where Text starts, per physical line.
	cols []int
}

// Has reports whether the line carries directive d (without the @).
func (l Line) Has(d string) bool {
	for _, x := range l.Directives {
		if x == d {
			return true
		}
	}
	return false
}

// Known directives.
const (
	DirectiveNoInteract = "nointeract"
	DirectiveAllAtOnce  = "allatonce"
)

// Error represents a parse error with position context.

type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Lines returns every line of every scene in play order.
func (s Script) Lines() []Line {
	var out []Line
	for _, sc := range s.Scenes {
		out = append(out, sc.Lines...)
	}
	return out
}

// Spoken returns the dialogue and narration lines in play order.
func (s Script) Spoken() []Line {
	var out []Line
	for _, sc := range s.Scenes {
		for _, l := range sc.Lines {
			if l.Type == LineDialogue || l.Type == LineNarration {
				out = append(out, l)
			}
		}
	}
	return out
}
