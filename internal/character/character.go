/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package character builds speaking characters from kinds and overrides and
// drives a line of dialogue from a character through the reveal sequencer.
package character

import (
	"maps"
	"strings"

	"govn/internal/dialogue"
)

// Callback receives the lifecycle events of every line a character speaks.
type Callback func(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta)

// Character is the configuration of a speaker. The zero value is not useful;
// build characters with New or Copy.
type Character struct {
	// Name is shown as the speaker; empty means no name. With Dynamic set it is
	// an expression resolved at say time.
	Name       string
	Dynamic    bool
	WhoPrefix  string
	WhoSuffix  string
	WhatPrefix string
	WhatSuffix string
	// Condition hides the line when it evaluates to false. Empty always shows.
	Condition string
	Screen    string
	Mode      string

	// Display holds the default display arguments of every line.
	Display dialogue.Options

	WhoArgs    map[string]any
	WhatArgs   map[string]any
	WindowArgs map[string]any
	ShowArgs   map[string]any
	CBArgs     map[string]any

	Callbacks []Callback
}

// Props overrides a kind's values. Nil fields inherit.
type Props struct {
	Name       *string
	Dynamic    *bool
	WhoPrefix  *string
	WhoSuffix  *string
	WhatPrefix *string
	WhatSuffix *string
	Condition  *string
	Screen     *string
	Mode       *string

	Interact            *bool
	Slow                *bool
	AFM                 *bool
	AllAtOnce           *bool
	Indicator           *string
	IndicatorPause      *string
	IndicatorTimedPause *string
	IndicatorPosition   *string
	ForceIndicator      *bool
	WithNone            *bool
	Type                *string

	// Callbacks replaces the kind's callbacks when non-nil.
	Callbacks []Callback

	// Extra holds style properties routed by prefix: show_, cb_, what_,
	// window_ and who_ go to the matching args map with the prefix removed,
	// anything else goes to the who args. "image" is a show arg and
	// "slow_abortable" a what arg.
	Extra map[string]any
}

// Ptr returns a pointer to v, for filling Props.
func Ptr[T any](v T) *T { return &v }

// Default returns the base kind every character inherits from unless told
// otherwise: an interactive, slow-revealing, auto-forwardable line with a
// nestled indicator and a checkpoint.
func Default() *Character {
	return &Character{
		Mode:       "say",
		Screen:     "say",
		Display:    dialogue.DefaultOptions(),
		WhoArgs:    map[string]any{},
		WhatArgs:   map[string]any{},
		WindowArgs: map[string]any{},
		ShowArgs:   map[string]any{},
		CBArgs:     map[string]any{},
	}
}

// New builds a character named name from kind (Default when nil) with p applied.
func New(name string, kind *Character, p Props) *Character {
	if p.Name == nil {
		p.Name = &name
	}
	if kind == nil {
		kind = Default()
	}
	return build(kind, p)
}

// Copy returns a new character that uses c as its kind.
func (c *Character) Copy(p Props) *Character { return build(c, p) }

func build(kind *Character, p Props) *Character {
	c := &Character{
		Name:       pick(p.Name, kind.Name),
		Dynamic:    pick(p.Dynamic, kind.Dynamic),
		WhoPrefix:  pick(p.WhoPrefix, kind.WhoPrefix),
		WhoSuffix:  pick(p.WhoSuffix, kind.WhoSuffix),
		WhatPrefix: pick(p.WhatPrefix, kind.WhatPrefix),
		WhatSuffix: pick(p.WhatSuffix, kind.WhatSuffix),
		Condition:  pick(p.Condition, kind.Condition),
		Screen:     pick(p.Screen, kind.Screen),
		Mode:       pick(p.Mode, kind.Mode),
		WhoArgs:    cloneArgs(kind.WhoArgs),
		WhatArgs:   cloneArgs(kind.WhatArgs),
		WindowArgs: cloneArgs(kind.WindowArgs),
		ShowArgs:   cloneArgs(kind.ShowArgs),
		CBArgs:     cloneArgs(kind.CBArgs),
	}

	d := kind.Display
	d.Interact = pick(p.Interact, d.Interact)
	d.Slow = pick(p.Slow, d.Slow)
	d.AFM = pick(p.AFM, d.AFM)
	d.AllAtOnce = pick(p.AllAtOnce, d.AllAtOnce)
	d.Indicators.Final = pick(p.Indicator, d.Indicators.Final)
	d.Indicators.Pause = pick(p.IndicatorPause, d.Indicators.Pause)
	d.Indicators.TimedPause = pick(p.IndicatorTimedPause, d.Indicators.TimedPause)
	d.IndicatorPosition = pick(p.IndicatorPosition, d.IndicatorPosition)
	d.ForceIndicator = pick(p.ForceIndicator, d.ForceIndicator)
	if p.WithNone != nil {
		d.WithNone = Ptr(*p.WithNone)
	} else if d.WithNone != nil {
		d.WithNone = Ptr(*d.WithNone)
	}
	d.Type = pick(p.Type, d.Type)
	d.CallbackArgs = nil
	c.Display = d

	if p.Callbacks != nil {
		c.Callbacks = append([]Callback(nil), p.Callbacks...)
	} else {
		c.Callbacks = append([]Callback(nil), kind.Callbacks...)
	}

	c.route(p.Extra)
	return c
}

// route files each extra property into its args map.
func (c *Character) route(extra map[string]any) {
	for k, v := range extra {
		switch k {
		case "image":
			c.ShowArgs[k] = v
			continue
		case "slow_abortable":
			c.WhatArgs[k] = v
			continue
		}
		if prefix, suffix, ok := strings.Cut(k, "_"); ok {
			switch prefix {
			case "show":
				c.ShowArgs[suffix] = v
				continue
			case "cb":
				c.CBArgs[suffix] = v
				continue
			case "what":
				c.WhatArgs[suffix] = v
				continue
			case "window":
				c.WindowArgs[suffix] = v
				continue
			case "who":
				c.WhoArgs[suffix] = v
				continue
			}
		}
		c.WhoArgs[k] = v
	}
}

func pick[T any](p *T, fallback T) T {
	if p != nil {
		return *p
	}
	return fallback
}

func cloneArgs(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

// Style is what a presenter needs to draw a character's lines.
type Style struct {
	Screen     string
	WhoArgs    map[string]any
	WhatArgs   map[string]any
	WindowArgs map[string]any
	ShowArgs   map[string]any
	Callbacks  []Callback
}

// Fire delivers a lifecycle event to every callback of the style.
func (s Style) Fire(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
	for _, cb := range s.Callbacks {
		cb(ev, meta)
	}
}

// Styler is implemented by sinks that draw per-character styling and fire
// character callbacks themselves.
type Styler interface {
	SetStyle(s Style)
}
