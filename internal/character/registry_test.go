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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"govn/internal/dialogue"
)

const defsYAML = `
characters:
  e:
    name: Eileen
    who_color: "#c8ffc8"
    ctc: ctc_arrow
    callback: blip
  e_whisper:
    kind: e
    what_prefix: "("
    what_suffix: ")"
    slow: false
  narrator:
    ctc_position: fixed
    window_background: narrator_frame.png
`

func TestLoadDefinitions(t *testing.T) {
	calls := 0
	cbs := map[string]Callback{"blip": func(dialogue.LifecycleEvent, dialogue.LifecycleMeta) { calls++ }}
	r, err := LoadDefinitions(strings.NewReader(defsYAML), cbs)
	require.NoError(t, err)
	require.Equal(t, []string{"e", "e_whisper", "narrator"}, r.IDs())

	e, ok := r.Get("e")
	require.True(t, ok)
	require.Equal(t, "Eileen", e.Name)
	require.Equal(t, "#c8ffc8", e.WhoArgs["color"])
	require.Equal(t, "ctc_arrow", e.Display.Indicators.Final)
	require.Len(t, e.Callbacks, 1)

	w, _ := r.Get("e_whisper")
	require.Equal(t, "Eileen", w.Name)
	require.Equal(t, "(", w.WhatPrefix)
	require.False(t, w.Display.Slow)
	require.Equal(t, "#c8ffc8", w.WhoArgs["color"])
	require.Len(t, w.Callbacks, 1, "callbacks inherited from kind")

	n, _ := r.Get("narrator")
	require.Equal(t, "", n.Name)
	require.Equal(t, dialogue.PositionFixed, n.Display.IndicatorPosition)
	require.Equal(t, "narrator_frame.png", n.WindowArgs["background"])
}

func TestLoadDefinitionsRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad_type", "characters:\n  e:\n    slow: \"yes\"\n"},
		{"bad_position", "characters:\n  e:\n    ctc_position: middle\n"},
		{"bad_id", "characters:\n  Eileen:\n    name: Eileen\n"},
		{"missing_root", "people: {}\n"},
		{"unknown_kind", "characters:\n  e:\n    kind: ghost\n"},
		{"cycle", "characters:\n  a:\n    kind: b\n  b:\n    kind: a\n"},
		{"unknown_callback", "characters:\n  e:\n    callback: [nope]\n"},
		{"not_yaml", "characters: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDefinitions(strings.NewReader(tc.yaml), nil)
			require.ErrorIs(t, err, ErrInvalidDefinitions)
		})
	}
}

func TestLoadDefinitionsExplicitBaseKind(t *testing.T) {
	r, err := LoadDefinitions(strings.NewReader("characters:\n  s:\n    kind: adv\n    name: Sylvie\n"), nil)
	require.NoError(t, err)
	s, ok := r.Get("s")
	require.True(t, ok)
	require.Equal(t, "Sylvie", s.Name)
}

func TestRegistryLookupFallbackAndGlobals(t *testing.T) {
	r := NewRegistry()
	r.Add("e", New("Eileen", nil, Props{}))
	require.Equal(t, "Eileen", r.Lookup("e", "EILEEN").Name)
	fb := r.Lookup("lucy", "LUCY")
	require.Equal(t, "LUCY", fb.Name)
	require.True(t, fb.Display.Interact)

	r.AddGlobalCallback(func(dialogue.LifecycleEvent, dialogue.LifecycleMeta) {})
	require.Len(t, r.AllCallbacks(), 1)
}
