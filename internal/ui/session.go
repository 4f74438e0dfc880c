/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop presenter. The window is only compiled with the
// fyne build tag; other builds get a stub Run that explains how to enable it.
package ui

import (
	"errors"
	"time"

	"govn/internal/player"
	"govn/internal/script"
)

// Session is a script ready to be played in the desktop window. Run sets
// Player.Sink.
type Session struct {
	Player *player.Player
	Script script.Script
	Name   string
	Start  int
	// CharDelay is the time between two characters of slow text.
	CharDelay time.Duration
	// AFMTime is the auto-forward wait in seconds per 10 characters.
	AFMTime float64
}

// ErrUnavailable is returned by Run in builds without the desktop window.
var ErrUnavailable = errors.New("desktop UI not built in this binary")

func scriptArg(s Session) string {
	if s.Name == "" {
		return "<script>"
	}
	return s.Name
}
