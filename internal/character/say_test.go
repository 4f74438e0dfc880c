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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"govn/internal/dialogue"
)

type stubSink struct {
	calls  []string
	whos   []string
	texts  []string
	styled *Style
}

func (s *stubSink) Render(_ context.Context, who string, p dialogue.RevealPhase) (dialogue.Rendered, error) {
	s.calls = append(s.calls, fmt.Sprintf("render:%d", p.Index))
	s.whos = append(s.whos, who)
	s.texts = append(s.texts, p.Text)
	return dialogue.TextHandle(p.Text), nil
}

func (s *stubSink) Interact(_ context.Context, _ dialogue.Rendered, p dialogue.RevealPhase, _ bool) (dialogue.InteractResult, error) {
	s.calls = append(s.calls, fmt.Sprintf("interact:%d", p.Index))
	return dialogue.InteractCompleted, nil
}

func (s *stubSink) FireLifecycle(ev dialogue.LifecycleEvent, _ dialogue.LifecycleMeta) {
	s.calls = append(s.calls, string(ev))
}
func (s *stubSink) FireSustainHooks()         {}
func (s *stubSink) Checkpoint()               { s.calls = append(s.calls, "checkpoint") }
func (s *stubSink) RestoreAfterRollback(bool) {}
func (s *stubSink) ClearTransientOverlays()   { s.calls = append(s.calls, "clear") }

type styledSink struct{ stubSink }

func (s *styledSink) SetStyle(st Style) { s.styled = &st }

type stubEnv struct {
	sink    dialogue.Sink
	policy  dialogue.RuntimePolicy
	log     []string
	cond    map[string]bool
	names   map[string]string
	mode    string
	globals []Callback
}

func (e *stubEnv) Policy() dialogue.RuntimePolicy { return e.policy }
func (e *stubEnv) Sink() dialogue.Sink            { return e.sink }
func (e *stubEnv) Log(line string)                { e.log = append(e.log, line) }
func (e *stubEnv) SwitchMode(m string)            { e.mode = m }
func (e *stubEnv) AllCallbacks() []Callback       { return e.globals }
func (e *stubEnv) EvalCondition(expr string) (bool, error) {
	v, ok := e.cond[expr]
	if !ok {
		return false, errors.New("undefined: " + expr)
	}
	return v, nil
}
func (e *stubEnv) ResolveName(expr string) (string, error) {
	v, ok := e.names[expr]
	if !ok {
		return "", errors.New("undefined: " + expr)
	}
	return v, nil
}

func newEnv(s dialogue.Sink) *stubEnv {
	return &stubEnv{sink: s, policy: dialogue.RuntimePolicy{SlowEnabled: true, DismissAllowed: true, ImplicitWithNone: true}}
}

func TestSayDecoratesAndLogs(t *testing.T) {
	s := &stubSink{}
	env := newEnv(s)
	c := New("Eileen", nil, Props{WhoSuffix: Ptr(":"), WhatPrefix: Ptr("\""), WhatSuffix: Ptr("\"")})

	out, err := c.Say(context.Background(), env, "Hi{w} there", Overrides{})
	require.NoError(t, err)
	require.Equal(t, dialogue.OutcomeCompleted, out)
	require.Equal(t, []string{"Eileen:", "Eileen:"}, s.whos)
	require.Equal(t, "\"Hi there\"", s.texts[1])
	require.Equal(t, []string{"Eileen:", "\"Hi there\"", ""}, env.log)
	require.Equal(t, "say", env.mode)
}

func TestSayNarratorHasNoName(t *testing.T) {
	s := &stubSink{}
	env := newEnv(s)
	out, err := New("", nil, Props{}).Say(context.Background(), env, "Quiet.", Overrides{})
	require.NoError(t, err)
	require.Equal(t, dialogue.OutcomeCompleted, out)
	require.Equal(t, []string{""}, s.whos)
	require.Equal(t, []string{"Quiet.", ""}, env.log)
}

func TestSayConditionHidesLine(t *testing.T) {
	s := &stubSink{}
	env := newEnv(s)
	env.cond = map[string]bool{"met_eileen": false}
	c := New("Eileen", nil, Props{Condition: Ptr("met_eileen")})

	out, err := c.Say(context.Background(), env, "Hello.", Overrides{})
	require.NoError(t, err)
	require.Equal(t, dialogue.OutcomeUnknown, out)
	require.Empty(t, s.calls)
	require.Empty(t, env.log)
	require.False(t, c.WillInteract(env))

	env.cond["met_eileen"] = true
	require.True(t, c.WillInteract(env))
}

func TestSayConditionErrors(t *testing.T) {
	env := newEnv(&stubSink{})
	c := New("Eileen", nil, Props{Condition: Ptr("nope")})
	_, err := c.Say(context.Background(), env, "x", Overrides{})
	require.Error(t, err)
}

func TestSayDynamicName(t *testing.T) {
	s := &stubSink{}
	env := newEnv(s)
	env.names = map[string]string{"player_name": "Sam"}
	c := New("player_name", nil, Props{Dynamic: Ptr(true)})
	_, err := c.Say(context.Background(), env, "Me.", Overrides{})
	require.NoError(t, err)
	require.Equal(t, "Sam", s.whos[0])
}

func TestSayMarkupError(t *testing.T) {
	env := newEnv(&stubSink{})
	_, err := New("A", nil, Props{}).Say(context.Background(), env, "a{w=soon}b", Overrides{})
	require.ErrorIs(t, err, dialogue.ErrMarkupFormat)
	require.Empty(t, env.log)
}

func TestSayNonInteractiveOverride(t *testing.T) {
	s := &stubSink{}
	env := newEnv(s)
	c := New("A", nil, Props{})
	out, err := c.Say(context.Background(), env, "one{p}two", Overrides{Interact: Ptr(false)})
	require.NoError(t, err)
	require.Equal(t, dialogue.OutcomeCompleted, out)
	require.NotContains(t, s.calls, "interact:0")
	require.Equal(t, "", env.mode, "non-interactive lines keep the mode")
}

func TestSayFiresCallbacksThroughWrapper(t *testing.T) {
	s := &stubSink{}
	env := newEnv(s)
	var got []string
	env.globals = []Callback{func(ev dialogue.LifecycleEvent, _ dialogue.LifecycleMeta) { got = append(got, "g:"+string(ev)) }}
	c := New("A", nil, Props{
		Callbacks: []Callback{func(ev dialogue.LifecycleEvent, m dialogue.LifecycleMeta) {
			got = append(got, "c:"+string(ev)+":"+fmt.Sprint(m.Args["voice"]))
		}},
		Extra: map[string]any{"cb_voice": "a"},
	})
	_, err := c.Say(context.Background(), env, "Hi.", Overrides{})
	require.NoError(t, err)
	require.Equal(t, "g:begin", got[0])
	require.Equal(t, "c:begin:a", got[1])
	require.Contains(t, got, "c:end:a")
}

func TestSayHandsStyleToStyler(t *testing.T) {
	s := &styledSink{}
	env := newEnv(s)
	c := New("A", nil, Props{Extra: map[string]any{"color": "red"}})
	_, err := c.Say(context.Background(), env, "Hi.", Overrides{})
	require.NoError(t, err)
	require.NotNil(t, s.styled)
	require.Equal(t, "red", s.styled.WhoArgs["color"])
	require.Equal(t, "say", s.styled.Screen)
}
