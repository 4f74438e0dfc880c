/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package audio plays the voice blip that accompanies revealed dialogue.
package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"govn/internal/character"
	"govn/internal/dialogue"
	applog "govn/internal/log"
)

// SampleRate is the rate the speaker is opened with.
const SampleRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Init opens the default audio device once. Later calls return the first result.
func Init() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(SampleRate, SampleRate.N(time.Second/10))
		if speakerErr != nil {
			applog.WithComponent("audio").Warn("no audio device, blips disabled", slog.Any("err", speakerErr))
		}
	})
	return speakerErr
}

// Blip is a short sine tone.
type Blip struct {
	Freq   float64
	Length time.Duration
	// Volume is in halvings of amplitude; 0 is full scale, -1 half.
	Volume float64

	play func(beep.Streamer)
}

// NewBlip returns a blip that plays through the speaker, or does nothing when
// no audio device could be opened.
func NewBlip(freq float64, length time.Duration) *Blip {
	b := &Blip{Freq: freq, Length: length, Volume: -2}
	if Init() == nil {
		b.play = func(s beep.Streamer) { speaker.Play(s) }
	}
	return b
}

// Streamer returns a fresh stream of the tone.
func (b *Blip) Streamer() (beep.Streamer, error) {
	sine, err := generators.SineTone(SampleRate, b.Freq)
	if err != nil {
		return nil, err
	}
	return &effects.Volume{
		Streamer: beep.Take(SampleRate.N(b.Length), sine),
		Base:     2,
		Volume:   b.Volume,
	}, nil
}

// Callback plays the blip whenever a phase is shown. A cb_blip argument set
// to false silences one character or line.
func (b *Blip) Callback() character.Callback {
	return func(ev dialogue.LifecycleEvent, meta dialogue.LifecycleMeta) {
		if ev != dialogue.EventShow || b.play == nil {
			return
		}
		if on, ok := meta.Args["blip"].(bool); ok && !on {
			return
		}
		s, err := b.Streamer()
		if err != nil {
			applog.WithComponent("audio").Debug("blip", slog.Any("err", err))
			return
		}
		b.play(s)
	}
}
