/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package script reads dialogue scripts:
//
//	# The Park
//	EILEEN: Hi there!{w=0.5} Nice day, isn't it?
//	  Continuation lines are indented.
//	NARRATOR: The wind picks up. @allatonce
//	; author note
package script

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"govn/internal/dialogue"
)

var (
	reScene      = regexp.MustCompile(`^(#+)\s*(.*)$`)
	reSceneAlt   = regexp.MustCompile(`^(?i)\s*Scene:\s*(.+)$`)
	reName       = regexp.MustCompile(`^([A-Za-z0-9_\- ]{1,64})\s*:\s*(.*)$`)
	reDirectives = regexp.MustCompile(`(?:\s+@[a-z_]+)+\s*$|^(?:@[a-z_]+\s*)+$`)
	reDirective  = regexp.MustCompile(`@([a-z_]+)`)
)

// Parse parses a script text into a structured Script.
// Supported syntax:
// - Scene headings: lines starting with "#" or "Scene:"; the rest of the line is the title.
// - Dialogue: NAME: text. Continuation lines indented by 2+ spaces are appended with a newline.
// - Narration: NARRATOR: text or CAPTION: text.
// - Directives: trailing @words on a dialogue line, e.g. @nointeract or @allatonce.
// - Notes: lines starting with ';'.
// Every spoken line gets a stable ID and its markup is checked; bad markup is
// reported as an Error but the line is kept.
func Parse(input string) (Script, []Error) {
	s := Script{Scenes: []Scene{}}
	var errs []Error

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	currentScene := Scene{}
	var lastLine *Line

	flushScene := func() {
		if strings.TrimSpace(currentScene.Title) != "" || len(currentScene.Lines) > 0 {
			s.Scenes = append(s.Scenes, currentScene)
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if strings.HasPrefix(line, "  ") && lastLine != nil && (lastLine.Type == LineDialogue || lastLine.Type == LineNarration) {
			cont := strings.TrimSpace(line)
			if cont != "" {
				cont, dirs := splitDirectives(cont)
				lastLine.Directives = mergeDirectives(lastLine.Directives, dirs)
				if cont != "" {
					lastLine.Text += "\n" + cont
					lastLine.cols = append(lastLine.cols, strings.Index(line, cont)+1)
				}
			}
			continue
		}

		trim := strings.TrimSpace(line)
		if trim == "" {
			lastLine = nil
			continue
		}

		if m := reScene.FindStringSubmatch(trim); m != nil {
			flushScene()
			currentScene = Scene{Title: strings.TrimSpace(m[2])}
			lastLine = nil
			continue
		}
		if m := reSceneAlt.FindStringSubmatch(trim); m != nil {
			flushScene()
			currentScene = Scene{Title: strings.TrimSpace(m[1])}
			lastLine = nil
			continue
		}

		if strings.HasPrefix(trim, ";") {
			currentScene.Lines = append(currentScene.Lines, Line{Type: LineNote, Text: strings.TrimSpace(strings.TrimPrefix(trim, ";")), LineNo: lineNo})
			lastLine = nil
			continue
		}

		if len(s.Scenes) == 0 && strings.TrimSpace(currentScene.Title) == "" && len(currentScene.Lines) == 0 {
			currentScene.Title = "Untitled"
		}

		if m := reName.FindStringSubmatch(trim); m != nil {
			name := strings.TrimSpace(m[1])
			text, dirs := splitDirectives(strings.TrimSpace(m[2]))
			ln := Line{Type: LineDialogue, Speaker: name, Character: characterID(name), Text: text, Directives: dirs, LineNo: lineNo}
			switch strings.ToUpper(name) {
			case "NARRATOR", "CAPTION":
				ln.Type = LineNarration
				ln.Speaker = ""
			}
			colon := strings.Index(line, ":")
			ln.cols = []int{colon + 2 + strings.Index(line[colon+1:], text)}
			currentScene.Lines = append(currentScene.Lines, ln)
			lastLine = &currentScene.Lines[len(currentScene.Lines)-1]
			continue
		}

		// keep unknown lines to avoid data loss
		currentScene.Lines = append(currentScene.Lines, Line{Type: LineUnknown, Text: trim, LineNo: lineNo})
		lastLine = nil
	}
	flushScene()

	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}

	assignIDs(&s)
	for _, sc := range s.Scenes {
		for _, l := range sc.Lines {
			if l.Type != LineDialogue && l.Type != LineNarration {
				continue
			}
			if err := CheckMarkup(l); err != nil {
				var se Error
				if errors.As(err, &se) {
					errs = append(errs, se)
				}
			}
		}
	}
	return s, errs
}

// CheckMarkup runs the dialogue tag parser over l and maps a failure back to
// a source position.
func CheckMarkup(l Line) error {
	_, err := dialogue.Parse(l.Text)
	if err == nil {
		return nil
	}
	e := Error{Line: l.LineNo, Column: 1, Message: err.Error()}
	var mf *dialogue.MarkupFormatError
	if errors.As(err, &mf) {
		row := strings.Count(l.Text[:mf.Offset], "\n")
		e.Line = l.LineNo + row
		col := mf.Offset
		if i := strings.LastIndex(l.Text[:mf.Offset], "\n"); i >= 0 {
			col = mf.Offset - i - 1
		}
		if row < len(l.cols) && l.cols[row] > 0 {
			col += l.cols[row]
		} else {
			col++
		}
		e.Column = col
		e.Message = fmt.Sprintf("invalid {%s=%s}: %v", mf.Tag, mf.Value, mf.Err)
	}
	return e
}

func characterID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// splitDirectives removes trailing @words from text and returns them lower-cased.
func splitDirectives(text string) (string, []string) {
	loc := reDirectives.FindStringIndex(text)
	if loc == nil {
		return text, nil
	}
	var dirs []string
	for _, m := range reDirective.FindAllStringSubmatch(text[loc[0]:], -1) {
		dirs = mergeDirectives(dirs, []string{m[1]})
	}
	return strings.TrimSpace(text[:loc[0]]), dirs
}

func mergeDirectives(have, add []string) []string {
	for _, d := range add {
		d = strings.ToLower(d)
		dup := false
		for _, h := range have {
			if h == d {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, d)
		}
	}
	return have
}

// assignIDs gives every spoken line an ID derived from its scene, speaker and
// text. Repeats of the same line in a scene are numbered so IDs stay unique.
func assignIDs(s *Script) {
	for si := range s.Scenes {
		sc := &s.Scenes[si]
		seen := map[string]int{}
		for li := range sc.Lines {
			l := &sc.Lines[li]
			if l.Type != LineDialogue && l.Type != LineNarration {
				continue
			}
			key := sc.Title + "\x00" + l.Character + "\x00" + l.Text
			n := seen[key]
			seen[key] = n + 1
			if n > 0 {
				key = fmt.Sprintf("%s\x00%d", key, n)
			}
			sum := sha256.Sum256([]byte(key))
			l.ID = hex.EncodeToString(sum[:8])
		}
	}
}
