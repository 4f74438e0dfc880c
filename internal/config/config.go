/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at load time.
// config_version: bump when the structure changes in a backward-incompatible way.

type EngineConfig struct {
	TextCPS          int     `yaml:"text_cps"` // characters per second; 0 shows text at once
	AFMEnabled       bool    `yaml:"afm_enabled"`
	AFMTime          float64 `yaml:"afm_time"` // seconds of auto-forward wait per 10 characters
	SkipUnseen       bool    `yaml:"skip_unseen"`
	SayAllowDismiss  bool    `yaml:"say_allow_dismiss"`
	ImplicitWithNone bool    `yaml:"implicit_with_none"`
	RollbackLimit    int     `yaml:"rollback_limit"`
}

type BackendConfig struct {
	// PGDSN points at the shared seen-line database. The password is not stored
	// here; it lives in the OS keychain.
	PGDSN       string `yaml:"pg_dsn"`
	SyncEnabled bool   `yaml:"sync_enabled"`
	Profile     string `yaml:"profile"` // read-state is shared between devices using the same profile
	TimeoutMs   int    `yaml:"timeout_ms"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	DataDir        string `yaml:"data_dir"` // empty: next to the config file
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Engine        EngineConfig  `yaml:"engine"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Engine: EngineConfig{
			TextCPS:          40,
			AFMEnabled:       false,
			AFMTime:          1.5,
			SkipUnseen:       false,
			SayAllowDismiss:  true,
			ImplicitWithNone: true,
			RollbackLimit:    128,
		},
		Backend: BackendConfig{Profile: "default", TimeoutMs: 5000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "GOVN_CONFIG"
	EnvDataDir          = "GOVN_DATA_DIR"
	EnvTelemetryOptIn   = "GOVN_TELEMETRY_OPT_IN"
	EnvTextCPS          = "GOVN_TEXT_CPS"
	EnvAFM              = "GOVN_AFM"
	EnvSkipUnseen       = "GOVN_SKIP_UNSEEN"
	EnvPGDSN            = "GOVN_PG_DSN"
	EnvBackendSync      = "GOVN_SYNC"
	EnvProfile          = "GOVN_PROFILE"
	EnvBackendTimeoutMs = "GOVN_BACKEND_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GOVN_LOG_LEVEL"
	EnvLogFormat = "GOVN_LOG_FORMAT"
	EnvLogSource = "GOVN_LOG_SOURCE"
	EnvLogFile   = "GOVN_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "govn"
	keyringPGPass  = "pg_password"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// ConfigPath returns the per-user config file path. GOVN_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "govn")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "govn")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "govn")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the directory holding the seen-line index and transcripts.
func (c AppConfig) DataDir() (string, error) {
	if d := strings.TrimSpace(c.General.DataDir); d != "" {
		return d, nil
	}
	p, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

// Load reads the user config file (if present), applies defaults and environment
// overrides. The Postgres password is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Decode over the defaults so keys missing from the file keep their default.
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	pw, _ := tokenStore.Get(keyringService, keyringPGPass)
	return cfg, pw, nil
}

// Save writes the user config YAML and persists the password into the OS keyring (if non-empty).
func Save(cfg AppConfig, pgPassword string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if pgPassword != "" {
		if err := tokenStore.Set(keyringService, keyringPGPass, pgPassword); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.DataDir) != "" {
		dst.General.DataDir = strings.TrimSpace(src.General.DataDir)
	}
	// engine
	if src.Engine.TextCPS >= 0 {
		dst.Engine.TextCPS = src.Engine.TextCPS
	}
	if src.Engine.AFMTime > 0 {
		dst.Engine.AFMTime = src.Engine.AFMTime
	}
	dst.Engine.AFMEnabled = src.Engine.AFMEnabled
	dst.Engine.SkipUnseen = src.Engine.SkipUnseen
	dst.Engine.SayAllowDismiss = src.Engine.SayAllowDismiss
	dst.Engine.ImplicitWithNone = src.Engine.ImplicitWithNone
	if src.Engine.RollbackLimit > 0 {
		dst.Engine.RollbackLimit = src.Engine.RollbackLimit
	}
	// backend
	if strings.TrimSpace(src.Backend.PGDSN) != "" {
		dst.Backend.PGDSN = strings.TrimSpace(src.Backend.PGDSN)
	}
	dst.Backend.SyncEnabled = src.Backend.SyncEnabled
	if strings.TrimSpace(src.Backend.Profile) != "" {
		dst.Backend.Profile = strings.TrimSpace(src.Backend.Profile)
	}
	if src.Backend.TimeoutMs > 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.General.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTextCPS)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Engine.TextCPS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAFM)); v != "" {
		cfg.Engine.AFMEnabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSkipUnseen)); v != "" {
		cfg.Engine.SkipUnseen = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Backend.PGDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendSync)); v != "" {
		cfg.Backend.SyncEnabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvProfile)); v != "" {
		cfg.Backend.Profile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.data_dir":         EnvDataDir,
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"engine.text_cps":          EnvTextCPS,
		"engine.afm_enabled":       EnvAFM,
		"engine.skip_unseen":       EnvSkipUnseen,
		"backend.pg_dsn":           EnvPGDSN,
		"backend.sync_enabled":     EnvBackendSync,
		"backend.profile":          EnvProfile,
		"backend.timeout_ms":       EnvBackendTimeoutMs,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// DSN returns PGDSN with password filled in when the DSN is a URL without one.
func (b BackendConfig) DSN(password string) (string, error) {
	if b.PGDSN == "" {
		return "", errors.New("backend: no pg_dsn configured")
	}
	if password == "" || !strings.Contains(b.PGDSN, "://") {
		return b.PGDSN, nil
	}
	u, err := url.Parse(b.PGDSN)
	if err != nil {
		return "", fmt.Errorf("backend: parse pg_dsn: %w", err)
	}
	if u.User == nil {
		return b.PGDSN, nil
	}
	if _, set := u.User.Password(); set {
		return b.PGDSN, nil
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String(), nil
}

// TextSpeed returns the per-character reveal interval; zero means instant.
func (e EngineConfig) TextSpeed() time.Duration {
	if e.TextCPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(e.TextCPS)
}
