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
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/characters.schema.json
var definitionsSchema []byte

// BaseKind names the built-in kind every definition inherits from by default.
const BaseKind = "adv"

// ErrInvalidDefinitions is matched by every error LoadDefinitions returns for bad input.
var ErrInvalidDefinitions = errors.New("character: invalid definitions")

// Registry maps character ids to characters. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	chars map[string]*Character
	all   []Callback
}

func NewRegistry() *Registry {
	return &Registry{chars: map[string]*Character{}}
}

// Add registers c under id, replacing any previous character.
func (r *Registry) Add(id string, c *Character) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chars[id] = c
}

func (r *Registry) Get(id string) (*Character, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chars[id]
	return c, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.chars))
	for id := range r.chars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddGlobalCallback adds cb to the callbacks every character fires.
func (r *Registry) AddGlobalCallback(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, cb)
}

// AllCallbacks returns the callbacks every character fires, before its own.
func (r *Registry) AllCallbacks() []Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Callback(nil), r.all...)
}

// Fallback builds a plain character for a speaker with no definition.
func (r *Registry) Fallback(speaker string) *Character {
	return New(speaker, nil, Props{})
}

// Lookup returns the character for id, or a fallback named speaker.
func (r *Registry) Lookup(id, speaker string) *Character {
	if c, ok := r.Get(id); ok {
		return c
	}
	return r.Fallback(speaker)
}

// LoadDefinitions reads YAML character definitions:
//
//	characters:
//	  e:
//	    name: Eileen
//	    who_color: "#c8ffc8"
//	  e_whisper:
//	    kind: e
//	    what_prefix: "("
//	    what_suffix: ")"
//
// The document is validated against the embedded JSON schema. callback names
// are looked up in callbacks.
func LoadDefinitions(rd io.Reader, callbacks map[string]Callback) (*Registry, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	var doc map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinitions, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	defs := map[string]map[string]any{}
	if raw, ok := doc["characters"].(map[string]any); ok {
		for id, v := range raw {
			m, _ := v.(map[string]any)
			if m == nil {
				m = map[string]any{}
			}
			defs[id] = m
		}
	}

	r := NewRegistry()
	b := builder{defs: defs, callbacks: callbacks, done: map[string]*Character{}, visiting: map[string]bool{}}
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c, err := b.resolve(id)
		if err != nil {
			return nil, err
		}
		r.Add(id, c)
	}
	return r, nil
}

func validate(doc map[string]any) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(definitionsSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinitions, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDefinitions, strings.Join(msgs, "; "))
}

type builder struct {
	defs      map[string]map[string]any
	callbacks map[string]Callback
	done      map[string]*Character
	visiting  map[string]bool
}

func (b *builder) resolve(id string) (*Character, error) {
	if c, ok := b.done[id]; ok {
		return c, nil
	}
	if b.visiting[id] {
		return nil, fmt.Errorf("%w: kind cycle through %q", ErrInvalidDefinitions, id)
	}
	def, ok := b.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDefinitions, id)
	}
	b.visiting[id] = true
	defer delete(b.visiting, id)

	kind := Default()
	if k, _ := def["kind"].(string); k != "" && k != BaseKind {
		var err error
		if kind, err = b.resolve(k); err != nil {
			return nil, err
		}
	}
	p, err := propsFromMap(def, b.callbacks)
	if err != nil {
		return nil, fmt.Errorf("character %q: %w", id, err)
	}
	c := kind.Copy(p)
	b.done[id] = c
	return c, nil
}

// propsFromMap turns one validated definition into Props. Unknown keys become
// Extra and are routed by prefix.
func propsFromMap(def map[string]any, callbacks map[string]Callback) (Props, error) {
	var p Props
	str := func(k string) *string {
		if v, ok := def[k].(string); ok {
			return &v
		}
		return nil
	}
	boolean := func(k string) *bool {
		if v, ok := def[k].(bool); ok {
			return &v
		}
		return nil
	}
	p.Name = str("name")
	p.Dynamic = boolean("dynamic")
	p.WhoPrefix = str("who_prefix")
	p.WhoSuffix = str("who_suffix")
	p.WhatPrefix = str("what_prefix")
	p.WhatSuffix = str("what_suffix")
	p.Condition = str("condition")
	p.Screen = str("screen")
	p.Mode = str("mode")
	p.Interact = boolean("interact")
	p.Slow = boolean("slow")
	p.AFM = boolean("afm")
	p.AllAtOnce = boolean("all_at_once")
	p.Indicator = str("ctc")
	p.IndicatorPause = str("ctc_pause")
	p.IndicatorTimedPause = str("ctc_timedpause")
	p.IndicatorPosition = str("ctc_position")
	p.ForceIndicator = boolean("ctc_force")
	p.WithNone = boolean("with_none")
	p.Type = str("type")

	var names []string
	switch v := def["callback"].(type) {
	case string:
		names = []string{v}
	case []any:
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
	}
	if def["callback"] != nil {
		p.Callbacks = []Callback{}
		for _, n := range names {
			cb, ok := callbacks[n]
			if !ok {
				return p, fmt.Errorf("%w: unknown callback %q", ErrInvalidDefinitions, n)
			}
			p.Callbacks = append(p.Callbacks, cb)
		}
	}

	for k, v := range def {
		if _, known := knownKeys[k]; known {
			continue
		}
		if p.Extra == nil {
			p.Extra = map[string]any{}
		}
		p.Extra[k] = v
	}
	return p, nil
}

var knownKeys = map[string]struct{}{
	"name": {}, "kind": {}, "dynamic": {}, "who_prefix": {}, "who_suffix": {},
	"what_prefix": {}, "what_suffix": {}, "condition": {}, "screen": {}, "mode": {},
	"interact": {}, "slow": {}, "afm": {}, "all_at_once": {}, "ctc": {}, "ctc_pause": {},
	"ctc_timedpause": {}, "ctc_position": {}, "ctc_force": {}, "with_none": {}, "type": {},
	"callback": {},
}
