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

import (
	"strings"
	"testing"
)

func TestParseBasicScenesAndDialogue(t *testing.T) {
	input := `# The Park
EILEEN: Hello, world!
  And a continuation line.

; a note that is never shown

# Second Scene
NARRATOR: Meanwhile, elsewhere...
Old Man: Hi, Eileen.`

	s, errs := Parse(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if len(s.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(s.Scenes))
	}
	if s.Scenes[0].Title != "The Park" {
		t.Fatalf("unexpected scene 1 title: %q", s.Scenes[0].Title)
	}
	l0 := s.Scenes[0].Lines[0]
	if l0.Type != LineDialogue || l0.Character != "eileen" || l0.Speaker != "EILEEN" {
		t.Fatalf("expected first line to be eileen dialogue, got %+v", l0)
	}
	if l0.Text != "Hello, world!\nAnd a continuation line." {
		t.Fatalf("unexpected dialogue text: %q", l0.Text)
	}
	if s.Scenes[0].Lines[1].Type != LineNote {
		t.Fatalf("expected note, got %+v", s.Scenes[0].Lines[1])
	}

	sc := s.Scenes[1]
	if len(sc.Lines) != 2 {
		t.Fatalf("expected 2 lines in scene 2, got %d", len(sc.Lines))
	}
	if sc.Lines[0].Type != LineNarration || sc.Lines[0].Speaker != "" {
		t.Fatalf("expected nameless narration, got %+v", sc.Lines[0])
	}
	if sc.Lines[1].Character != "old_man" || sc.Lines[1].Speaker != "Old Man" {
		t.Fatalf("expected old_man dialogue, got %+v", sc.Lines[1])
	}
	if got := len(s.Spoken()); got != 3 {
		t.Fatalf("expected 3 spoken lines, got %d", got)
	}
}

func TestImplicitSceneAndUnknownLines(t *testing.T) {
	input := `This is a cold open without a scene header.
CAPTION: A caption.
Some freeform line`

	s, errs := Parse(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if len(s.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(s.Scenes))
	}
	if s.Scenes[0].Title != "Untitled" {
		t.Fatalf("expected implicit Untitled scene, got %q", s.Scenes[0].Title)
	}
	if len(s.Scenes[0].Lines) != 3 {
		t.Fatalf("expected 3 lines in scene, got %d", len(s.Scenes[0].Lines))
	}
	if s.Scenes[0].Lines[0].Type != LineUnknown || s.Scenes[0].Lines[1].Type != LineNarration {
		t.Fatalf("unexpected line types: %+v", s.Scenes[0].Lines)
	}
}

func TestDirectives(t *testing.T) {
	input := `# S
EILEEN: Hello there. @nointeract
  more text @allatonce
NARRATOR: Wind. @allatonce @AllAtOnce
BOB: mail me at bob@example.com`

	s, errs := Parse(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	lines := s.Scenes[0].Lines
	dlg := lines[0]
	if dlg.Text != "Hello there.\nmore text" {
		t.Fatalf("directives not stripped: %q", dlg.Text)
	}
	if !dlg.Has(DirectiveNoInteract) || !dlg.Has(DirectiveAllAtOnce) {
		t.Fatalf("expected both directives, got %+v", dlg.Directives)
	}
	if lines[1].Text != "Wind. @allatonce @AllAtOnce" || len(lines[1].Directives) != 0 {
		t.Fatalf("a trailing run must be all lower-case directives: %q %v", lines[1].Text, lines[1].Directives)
	}
	if lines[2].Text != "mail me at bob@example.com" || len(lines[2].Directives) != 0 {
		t.Fatalf("embedded @ must stay text: %+v", lines[2])
	}
}

func TestStableAndUniqueIDs(t *testing.T) {
	input := "# S\nA: Hi.\nA: Hi.\nB: Hi.\n"
	s1, _ := Parse(input)
	s2, _ := Parse(input)
	ids := map[string]bool{}
	for i, l := range s1.Spoken() {
		if l.ID == "" {
			t.Fatalf("line %d has no id", i)
		}
		if ids[l.ID] {
			t.Fatalf("duplicate id %s", l.ID)
		}
		ids[l.ID] = true
		if s2.Spoken()[i].ID != l.ID {
			t.Fatalf("ids not stable across parses")
		}
	}
	other, _ := Parse("# T\nA: Hi.\n")
	if ids[other.Spoken()[0].ID] {
		t.Fatalf("same text in another scene must get another id")
	}
}

func TestMarkupErrorsReportPosition(t *testing.T) {
	input := "# S\nEILEEN: Wait{w=soon} for it.\n  then{p=x}\n"
	s, errs := Parse(input)
	if len(errs) != 1 {
		t.Fatalf("expected one error (first bad tag per line), got %+v", errs)
	}
	e := errs[0]
	if e.Line != 2 || e.Column != 13 {
		t.Fatalf("unexpected position %d:%d", e.Line, e.Column)
	}
	if !strings.Contains(e.Error(), "w=soon") {
		t.Fatalf("message should name the tag: %s", e.Error())
	}
	if len(s.Spoken()) != 1 {
		t.Fatalf("line with bad markup must be kept")
	}

	s, errs = Parse("# S\nA: fine\n  then{p=x}\n")
	if len(errs) != 1 || errs[0].Line != 3 || errs[0].Column != 7 {
		t.Fatalf("continuation error position wrong: %+v", errs)
	}
	_ = s
}
