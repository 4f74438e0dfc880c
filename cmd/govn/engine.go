/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"govn/internal/audio"
	"govn/internal/backend"
	"govn/internal/character"
	"govn/internal/config"
	"govn/internal/dialogue"
	"govn/internal/history"
	applog "govn/internal/log"
	"govn/internal/player"
	"govn/internal/script"
	"govn/internal/storage"
	"govn/internal/telemetry"
)

// engine bundles what every command that touches player data needs.
type engine struct {
	cfg     config.AppConfig
	pgPass  string
	dataDir string
	index   *storage.Index
	log     *slog.Logger
}

// openEngine loads the config, re-initialises logging from it and opens the
// seen-line index. console receives the console log; nil means stderr.
func openEngine(ctx context.Context, console io.Writer) (*engine, error) {
	cfg, pw, err := config.Load()
	if err != nil {
		return nil, err
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   console,
	})
	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tcfg)

	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	l := applog.WithComponent("cli")
	idx, rebuilt, err := storage.OpenOrRebuild(ctx, dir)
	if err != nil {
		return nil, err
	}
	if rebuilt {
		l.Warn("seen-line index was damaged and has been rebuilt", slog.String("path", idx.Path()))
	}
	return &engine{cfg: cfg, pgPass: pw, dataDir: dir, index: idx, log: l}, nil
}

func (e *engine) Close() {
	telemetry.Flush(context.Background())
	if err := e.index.Close(); err != nil {
		e.log.Warn("close index", slog.Any("err", err))
	}
}

// sync mirrors the seen-line registry with the shared database when enabled.
// force runs it even when sync_enabled is off.
func (e *engine) sync(ctx context.Context, force bool) (backend.SyncStats, error) {
	b := e.cfg.Backend
	if (!b.SyncEnabled && !force) || b.PGDSN == "" {
		return backend.SyncStats{}, nil
	}
	dsn, err := b.DSN(e.pgPass)
	if err != nil {
		return backend.SyncStats{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.Timeout())
	defer cancel()
	m, err := backend.Open(ctx, dsn)
	if err != nil {
		return backend.SyncStats{}, err
	}
	defer m.Close()
	return backend.Sync(ctx, e.index, m, b.Profile)
}

// trySync runs sync and only logs failures; play must work offline.
func (e *engine) trySync(ctx context.Context) {
	st, err := e.sync(ctx, false)
	if err != nil {
		e.log.Warn("seen-line sync failed", slog.Any("err", err))
		return
	}
	if !st.At.IsZero() {
		e.log.Info("seen-line sync", slog.Int("pushed", st.Pushed), slog.Int("pulled", st.Pulled))
	}
}

func (e *engine) newPlayer(reg *character.Registry) *player.Player {
	en := e.cfg.Engine
	state := history.NewState(
		history.Config{Limit: en.RollbackLimit, MinInterval: 300 * time.Millisecond},
		history.Prefs{
			SlowEnabled:      en.TextCPS > 0,
			AFMEnabled:       en.AFMEnabled,
			SkipUnseen:       en.SkipUnseen,
			DismissAllowed:   en.SayAllowDismiss,
			ImplicitWithNone: en.ImplicitWithNone,
		},
	)
	return &player.Player{Registry: reg, History: state, Index: e.index, DataDir: e.dataDir}
}

// scriptErrors lists every problem found in a script.
type scriptErrors []script.Error

func (s scriptErrors) Error() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

func loadScript(path string) (script.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return script.Script{}, err
	}
	sc, errs := script.Parse(string(data))
	if len(errs) > 0 {
		return sc, scriptErrors(errs)
	}
	return sc, nil
}

var blips = map[string]struct {
	freq   float64
	length time.Duration
}{
	"blip":      {660, 25 * time.Millisecond},
	"blip_low":  {330, 35 * time.Millisecond},
	"blip_high": {990, 20 * time.Millisecond},
}

// loadCharacters reads character definitions from path, or from a
// characters.yaml next to the script when path is empty. No file means an
// empty registry: every speaker gets a plain character.
func loadCharacters(path, scriptPath string, withAudio bool) (*character.Registry, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(filepath.Dir(scriptPath), "characters.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return character.NewRegistry(), nil
		}
		return nil, err
	}
	defer f.Close()

	// Definitions name their callbacks; without audio the names still resolve.
	callbacks := map[string]character.Callback{}
	for name, tone := range blips {
		if withAudio {
			callbacks[name] = audio.NewBlip(tone.freq, tone.length).Callback()
		} else {
			callbacks[name] = func(dialogue.LifecycleEvent, dialogue.LifecycleMeta) {}
		}
	}
	reg, err := character.LoadDefinitions(f, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}
