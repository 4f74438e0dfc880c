/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package dialogue turns a line of dialogue markup into reveal phases and drives
// them through a presentation Sink.
//
// Parse strips the dialogue-only text tags ({{, {p}, {w}, {nw}, {fast}) and records
// where the text pauses. Run walks the resulting segments, asking the Sink to render
// the cumulative text of each phase and to wait for the player in between.
package dialogue

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// tagRE matches the escaped brace or one of the dialogue tags with an optional value.
// Groups: 1 escaped brace, 2 full tag, 3 tag name, 4 value.
var tagRE = regexp.MustCompile(`(\{\{)|(\{(p|w|nw|fast)(?:=([^}]*))?\})`)

// ErrMarkupFormat is matched by every MarkupFormatError.
var ErrMarkupFormat = errors.New("dialogue: malformed markup")

// ErrDelayRange is wrapped by a MarkupFormatError for a delay that is negative,
// infinite or NaN.
var ErrDelayRange = errors.New("delay must be a finite number of seconds >= 0")

// MarkupFormatError reports a tag value that is not a usable number of seconds.
type MarkupFormatError struct {
	Tag    string
	Value  string
	Offset int // byte offset of the tag in the raw string
	Err    error
}

func (e *MarkupFormatError) Error() string {
	return fmt.Sprintf("dialogue: {%s=%s} at offset %d: invalid delay: %v", e.Tag, e.Value, e.Offset, e.Err)
}

func (e *MarkupFormatError) Unwrap() []error { return []error{ErrMarkupFormat, e.Err} }

// PauseSegment is a span of plain text revealed in one phase.
// Delay is nil when the phase waits for the player indefinitely.
type PauseSegment struct {
	Start int
	End   int
	Delay *float64
}

// Timed reports whether the segment ends in a pause with a definite length.
func (s PauseSegment) Timed() bool { return s.Delay != nil }

// Duration returns the pause length; zero when the pause is indefinite.
func (s PauseSegment) Duration() time.Duration {
	if s.Delay == nil {
		return 0
	}
	return time.Duration(*s.Delay * float64(time.Second))
}

// ParseResult is the outcome of Parse. Offsets are byte offsets into Text.
type ParseResult struct {
	Text     string
	Segments []PauseSegment
	NoWait   bool
	// SlowStart is where the slow reveal of the first phase begins. It is
	// non-zero only when a {fast} tag was seen: text before it shows at once.
	SlowStart int
}

// Validate checks the segment invariants: at least one segment, contiguous
// coverage of [0, len(Text)) and a SlowStart inside the first segment.
func (r ParseResult) Validate() error {
	if len(r.Segments) == 0 {
		return errors.New("dialogue: no segments")
	}
	if r.Segments[0].Start != 0 {
		return fmt.Errorf("dialogue: first segment starts at %d", r.Segments[0].Start)
	}
	for i, s := range r.Segments {
		if s.End < s.Start {
			return fmt.Errorf("dialogue: segment %d ends before it starts (%d < %d)", i, s.End, s.Start)
		}
		if i > 0 && s.Start != r.Segments[i-1].End {
			return fmt.Errorf("dialogue: gap between segments %d and %d", i-1, i)
		}
	}
	if last := r.Segments[len(r.Segments)-1]; last.End != len(r.Text) {
		return fmt.Errorf("dialogue: last segment ends at %d, text length %d", last.End, len(r.Text))
	}
	if r.SlowStart < 0 || r.SlowStart > r.Segments[0].End {
		return fmt.Errorf("dialogue: slow start %d outside first segment", r.SlowStart)
	}
	return nil
}

// pauses accumulates pause boundaries while scanning. {fast} resets it in place.
type pauses struct {
	starts    []int
	ends      []int
	delays    []*float64
	noWait    bool
	slowStart int
}

func newPauses() *pauses {
	p := &pauses{}
	p.reset(0)
	return p
}

func (p *pauses) reset(at int) {
	p.starts = append(p.starts[:0], 0)
	p.ends = p.ends[:0]
	p.delays = p.delays[:0]
	p.noWait = false
	p.slowStart = at
}

// pause closes the open segment at offset at and opens the next one there.
func (p *pauses) pause(at int, delay *float64) {
	p.ends = append(p.ends, at)
	p.delays = append(p.delays, delay)
	p.starts = append(p.starts, at)
}

func (p *pauses) finish(textLen int) []PauseSegment {
	p.ends = append(p.ends, textLen)
	if p.noWait {
		zero := 0.0
		p.delays = append(p.delays, &zero)
	} else {
		p.delays = append(p.delays, nil)
	}
	out := make([]PauseSegment, len(p.starts))
	for i := range p.starts {
		out[i] = PauseSegment{Start: p.starts[i], End: p.ends[i], Delay: p.delays[i]}
	}
	return out
}

// Parse strips the dialogue tags from raw and returns the plain text with its
// pause segments. Tags it does not know are left in the text for the renderer.
// A tag value that is not a finite, non-negative number is a *MarkupFormatError.
func Parse(raw string) (ParseResult, error) {
	var b strings.Builder
	b.Grow(len(raw))
	acc := newPauses()
	last := 0
	for _, m := range tagRE.FindAllStringSubmatchIndex(raw, -1) {
		b.WriteString(raw[last:m[0]])
		last = m[1]
		if m[2] >= 0 {
			b.WriteByte('{')
			continue
		}
		tag := raw[m[6]:m[7]]
		var delay *float64
		if m[8] >= 0 {
			value := raw[m[8]:m[9]]
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0) || v < 0) {
				err = ErrDelayRange
			}
			if err != nil {
				return ParseResult{}, &MarkupFormatError{Tag: tag, Value: value, Offset: m[0], Err: err}
			}
			delay = &v
		}
		switch tag {
		case "p", "w":
			acc.pause(b.Len(), delay)
		case "nw":
			acc.noWait = true
		case "fast":
			acc.reset(b.Len())
		}
	}
	b.WriteString(raw[last:])
	text := b.String()
	return ParseResult{
		Text:      text,
		Segments:  acc.finish(len(text)),
		NoWait:    acc.noWait,
		SlowStart: acc.slowStart,
	}, nil
}

// styleTagRE matches the renderer-only text tags Parse leaves in the text.
var styleTagRE = regexp.MustCompile(`\{/?(?:b|i|u|s|plain|color|size|font|alpha|a|k|cps|outlinecolor)(?:=[^}]*)?\}`)

// PlainText removes styling tags from text. Each of offsets, a byte offset into
// text, is mapped to the same position in the result; an offset inside a tag
// maps to where the tag was.
func PlainText(text string, offsets ...int) (string, []int) {
	mapped := append([]int(nil), offsets...)
	tags := styleTagRE.FindAllStringIndex(text, -1)
	if len(tags) == 0 {
		return text, mapped
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range tags {
		b.WriteString(text[last:m[0]])
		last = m[1]
	}
	b.WriteString(text[last:])

	for i, o := range offsets {
		removed := 0
		for _, m := range tags {
			if m[0] >= o {
				break
			}
			removed += min(m[1], o) - m[0]
		}
		mapped[i] = o - removed
	}
	return b.String(), mapped
}
