/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package character

import (
	"context"
	"fmt"
	"log/slog"

	"govn/internal/dialogue"
	applog "govn/internal/log"
)

// Env is the engine as seen by a character saying a line.
type Env interface {
	Policy() dialogue.RuntimePolicy
	Sink() dialogue.Sink
	// Log appends a line to the dialogue log.
	Log(line string)
}

// ConditionEvaluator is implemented by envs that can evaluate Condition.
// Without it a non-empty condition is an error.
type ConditionEvaluator interface {
	EvalCondition(expr string) (bool, error)
}

// NameResolver is implemented by envs that support dynamic names.
type NameResolver interface {
	ResolveName(expr string) (string, error)
}

// ModeSwitcher is implemented by envs that track the current mode.
type ModeSwitcher interface {
	SwitchMode(mode string)
}

// GlobalCallbacks is implemented by envs that add callbacks to every character.
type GlobalCallbacks interface {
	AllCallbacks() []Callback
}

// Overrides change the display arguments of a single line.
type Overrides struct {
	// Interact false makes this one line non-interactive.
	Interact  *bool
	AllAtOnce *bool
	Slow      *bool
	Type      *string
	// CallbackArgs are merged over the character's cb args.
	CallbackArgs map[string]any
}

// Shown reports whether the line passes the character's condition.
func (c *Character) Shown(env Env) (bool, error) {
	if c.Condition == "" {
		return true, nil
	}
	ev, ok := env.(ConditionEvaluator)
	if !ok {
		return false, fmt.Errorf("character %q: condition %q needs an evaluator", c.Name, c.Condition)
	}
	shown, err := ev.EvalCondition(c.Condition)
	if err != nil {
		return false, fmt.Errorf("character %q: condition: %w", c.Name, err)
	}
	return shown, nil
}

// Who returns the decorated speaker name, or "" when the character has none.
func (c *Character) Who(env Env) (string, error) {
	who := c.Name
	if c.Dynamic && who != "" {
		r, ok := env.(NameResolver)
		if !ok {
			return "", fmt.Errorf("character: dynamic name %q needs a resolver", who)
		}
		var err error
		if who, err = r.ResolveName(who); err != nil {
			return "", fmt.Errorf("character: resolve name %q: %w", c.Name, err)
		}
	}
	if who == "" {
		return "", nil
	}
	return c.WhoPrefix + who + c.WhoSuffix, nil
}

// Say shows what spoken by c. A line hidden by the condition returns
// OutcomeUnknown and no error.
func (c *Character) Say(ctx context.Context, env Env, what string, o Overrides) (dialogue.Outcome, error) {
	shown, err := c.Shown(env)
	if err != nil || !shown {
		return dialogue.OutcomeUnknown, err
	}

	opts := c.options(o)
	if opts.Interact {
		if ms, ok := env.(ModeSwitcher); ok {
			ms.SwitchMode(c.Mode)
		}
	}

	who, err := c.Who(env)
	if err != nil {
		return dialogue.OutcomeUnknown, err
	}
	what = c.WhatPrefix + what + c.WhatSuffix

	pr, err := dialogue.Parse(what)
	if err != nil {
		return dialogue.OutcomeUnknown, err
	}

	style := c.style(env)
	sink := env.Sink()
	if s, ok := sink.(Styler); ok {
		s.SetStyle(style)
	} else if len(style.Callbacks) > 0 {
		sink = callbackSink{Sink: sink, style: style}
	}

	out, err := dialogue.Run(ctx, who, pr, env.Policy(), opts, sink)
	if err != nil {
		return out, err
	}
	applog.WithComponent("character").Debug("line said",
		slog.String("who", who), slog.String("outcome", out.String()))

	if who != "" {
		env.Log(who)
	}
	env.Log(pr.Text)
	env.Log("")
	return out, nil
}

// WillInteract reports whether saying a line would wait for the player.
// An unevaluable condition counts as hidden.
func (c *Character) WillInteract(env Env) bool {
	if shown, err := c.Shown(env); err != nil || !shown {
		return false
	}
	return c.Display.Interact
}

// Predict returns the images a line of c will need: the window background,
// the speaker image and the side image.
func (c *Character) Predict(what string) []string {
	_ = what
	var rv []string
	if bg, ok := c.WindowArgs["background"].(string); ok && bg != "" {
		rv = append(rv, bg)
	}
	if img, ok := c.ShowArgs["image"]; ok && truthy(img) && !c.Dynamic && c.Name != "" {
		rv = append(rv, c.Name)
	}
	if side, ok := c.ShowArgs["side_image"].(string); ok && side != "" {
		rv = append(rv, side)
	}
	return rv
}

func (c *Character) options(o Overrides) dialogue.Options {
	opts := c.Display
	if o.Interact != nil {
		opts.Interact = opts.Interact && *o.Interact
	}
	opts.AllAtOnce = pick(o.AllAtOnce, opts.AllAtOnce)
	opts.Slow = pick(o.Slow, opts.Slow)
	opts.Type = pick(o.Type, opts.Type)
	args := cloneArgs(c.CBArgs)
	for k, v := range o.CallbackArgs {
		args[k] = v
	}
	opts.CallbackArgs = args
	return opts
}

func (c *Character) style(env Env) Style {
	var cbs []Callback
	if g, ok := env.(GlobalCallbacks); ok {
		cbs = append(cbs, g.AllCallbacks()...)
	}
	cbs = append(cbs, c.Callbacks...)
	return Style{
		Screen:     c.Screen,
		WhoArgs:    c.WhoArgs,
		WhatArgs:   c.WhatArgs,
		WindowArgs: c.WindowArgs,
		ShowArgs:   c.ShowArgs,
		Callbacks:  cbs,
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}

// callbackSink fires character callbacks for sinks that do not handle styles.
type callbackSink struct {
	dialogue.Sink
	style Style
}

func (s callbackSink) FireLifecycle(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
	s.Sink.FireLifecycle(ev, meta)
	s.style.Fire(ev, meta)
}
