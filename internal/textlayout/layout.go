/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package textlayout breaks dialogue text into lines for a fixed-width box.
//
// Lines keep byte offsets into the source text, so a renderer can lay out the
// complete line once and then cut it at the reveal position without words
// jumping between lines while they appear.
package textlayout

import (
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float32
}

// LineHeight is the distance between two baselines.
func (m Metrics) LineHeight() float32 { return m.Ascent + m.Descent + m.LineGap }

// Line is a single laid out line. Start and End are byte offsets into
// TextBox.Text; spaces at the break are not part of the line.
type Line struct {
	Start int
	End   int
	Width float32
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Text    string
	Lines   []Line
	Width   float32
	Height  float32
	Metrics Metrics
}

// Provider supplies the face used for measurement.
type Provider interface {
	Face() (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13. Every glyph is CellWidth
// pixels wide, which makes it a stand-in for terminal cells.
type BasicProvider struct{}

// CellWidth is the advance of every glyph in BasicProvider.
const CellWidth = 7

func (BasicProvider) Face() (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// WordWrapLayouter breaks on spaces and newlines. It does no shaping or
// hyphenation; a word wider than the box is split between runes.
type WordWrapLayouter struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrapLayouter { return &WordWrapLayouter{Provider: provider} }

// Layout wraps text into lines no wider than maxWidth. A maxWidth of zero or
// less only breaks on newlines. The box always has at least one line.
func (l *WordWrapLayouter) Layout(text string, maxWidth float32) TextBox {
	p := l.Provider
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Face()
	d := &font.Drawer{Face: face}
	box := TextBox{Text: text, Metrics: met}
	add := func(ln Line) {
		box.Lines = append(box.Lines, ln)
		if ln.Width > box.Width {
			box.Width = ln.Width
		}
		box.Height += met.LineHeight()
	}

	cur := Line{}
	started := false
	pos := 0
	for pos < len(text) {
		switch text[pos] {
		case '\n':
			add(cur)
			pos++
			cur, started = Line{Start: pos, End: pos}, false
			continue
		case ' ':
			pos++
			continue
		}
		end := pos
		for end < len(text) && text[end] != ' ' && text[end] != '\n' {
			end++
		}
		w := advance(d, text[pos:end])
		if started {
			gap := advance(d, text[cur.End:pos])
			if maxWidth > 0 && cur.Width+gap+w > maxWidth {
				add(cur)
				cur, started = Line{Start: pos, End: pos}, false
				continue
			}
			cur.Width += gap
		} else {
			cur.Start = pos
			if maxWidth > 0 && w > maxWidth {
				cut := fit(d, text[pos:end], maxWidth)
				add(Line{Start: pos, End: pos + cut, Width: advance(d, text[pos:pos+cut])})
				pos += cut
				cur = Line{Start: pos, End: pos}
				continue
			}
		}
		cur.End = end
		cur.Width += w
		started = true
		pos = end
	}
	add(cur)
	return box
}

// Strings returns the text of every line.
func (b TextBox) Strings() []string {
	return b.Visible(len(b.Text))
}

// Visible returns the lines as they look when only the first n bytes of the
// text are revealed. Lines that start after n are omitted.
func (b TextBox) Visible(n int) []string {
	if n > len(b.Text) {
		n = len(b.Text)
	}
	for n > 0 && n < len(b.Text) && !utf8.RuneStart(b.Text[n]) {
		n--
	}
	out := make([]string, 0, len(b.Lines))
	for i, ln := range b.Lines {
		if i > 0 && ln.Start >= n {
			break
		}
		end := min(ln.End, n)
		if end < ln.Start {
			end = ln.Start
		}
		out = append(out, b.Text[ln.Start:end])
	}
	return out
}

// fit returns the byte length of the longest prefix of word no wider than
// maxWidth. At least one rune is always kept.
func fit(d *font.Drawer, word string, maxWidth float32) int {
	n := 0
	for i := 0; i < len(word); {
		_, size := utf8.DecodeRuneInString(word[i:])
		next := i + size
		if n > 0 && advance(d, word[:next]) > maxWidth {
			break
		}
		n = next
		i = next
	}
	return n
}

func advance(d *font.Drawer, s string) float32 {
	return float32(d.MeasureString(s) >> 6) // fixed.Int26_6 to px
}

// Measure returns the width and height of text on a single line.
func Measure(provider Provider, text string) (w, h float32) {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Face()
	return advance(&font.Drawer{Face: face}, text), met.Ascent + met.Descent
}

// WrapColumns lays text out for a box cols terminal cells wide.
func WrapColumns(text string, cols int) TextBox {
	return NewWordWrap(BasicProvider{}).Layout(text, float32(cols*CellWidth))
}
