/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package player

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Autosave is the resume point written when the player crashes.
type Autosave struct {
	Session string    `yaml:"session"`
	Script  string    `yaml:"script"`
	Pos     int       `yaml:"pos"`
	LineID  string    `yaml:"line_id"`
	SavedAt time.Time `yaml:"saved_at"`
}

// ErrNoDataDir is returned when an autosave is requested without a data dir.
var ErrNoDataDir = errors.New("player: no data dir")

// CrashDir implements crash.Snapshotter.
func (p *Player) CrashDir() string {
	if p.DataDir == "" {
		return ""
	}
	return filepath.Join(p.DataDir, "crash")
}

// CrashSummary implements crash.Snapshotter.
func (p *Player) CrashSummary() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{
		"Session: " + p.session,
		"Script: " + p.name,
		fmt.Sprintf("Position: %d", p.pos),
		"Line: " + p.lineID,
		"Mode: " + p.mode,
	}
	if p.History != nil {
		back, fwd := p.History.Log().Stats()
		out = append(out,
			"Skipping: "+p.History.Skipping().String(),
			fmt.Sprintf("Rollback: %d back, %d forward", back, fwd),
		)
	}
	return out
}

// AutosaveCrash implements crash.Snapshotter by writing the resume point.
func (p *Player) AutosaveCrash() (string, error) {
	if p.DataDir == "" {
		return "", ErrNoDataDir
	}
	p.mu.Lock()
	a := Autosave{Session: p.session, Script: p.name, Pos: p.pos, LineID: p.lineID, SavedAt: time.Now().UTC()}
	p.mu.Unlock()
	path := AutosavePath(p.DataDir)
	return path, WriteAutosave(path, a)
}

// AutosavePath is where AutosaveCrash writes.
func AutosavePath(dataDir string) string {
	return filepath.Join(dataDir, "autosave.yaml")
}

func WriteAutosave(path string, a Autosave) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure autosave dir: %w", err)
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal autosave: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write autosave: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadAutosave loads a resume point. A missing file is returned as is, so
// callers can test it with errors.Is(err, fs.ErrNotExist).
func ReadAutosave(path string) (Autosave, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Autosave{}, err
	}
	var a Autosave
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Autosave{}, fmt.Errorf("parse autosave: %w", err)
	}
	return a, nil
}
