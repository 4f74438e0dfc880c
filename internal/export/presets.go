/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"govn/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetScreen  PresetName = "screen"
	PresetArchive PresetName = "archive"
)

// BatchOptions controls export of several sessions at once.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <data dir>/exports/<preset>/.
//   - Each session becomes <OutDir>/<format>/<session id>.<format>.
type BatchOptions struct {
	Preset   PresetName
	Formats  []string // allowed: pdf, txt; empty means preset defaults
	Sessions []string // empty means all sessions
	OutDir   string
}

// Transcripts is the part of the index BatchExport reads.
type Transcripts interface {
	Sessions(ctx context.Context) ([]storage.Session, error)
	Transcript(ctx context.Context, session string) ([]storage.Entry, error)
	Path() string
}

// BatchExport writes every selected session in every requested format and
// returns the files written. Sessions without lines are skipped.
func BatchExport(ctx context.Context, idx Transcripts, opt BatchOptions) ([]string, error) {
	if idx == nil {
		return nil, errors.New("export: no index")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
		if formats[i] != "pdf" && formats[i] != "txt" {
			return nil, fmt.Errorf("unknown format: %s", formats[i])
		}
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = string(PresetScreen)
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(filepath.Dir(idx.Path()), "exports", baseOut)
	}

	sessions, err := idx.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, s := range sessions {
		if len(opt.Sessions) > 0 && !slices.Contains(opt.Sessions, s.ID) {
			continue
		}
		if s.Lines == 0 {
			continue
		}
		entries, err := idx.Transcript(ctx, s.ID)
		if err != nil {
			return written, err
		}
		for _, f := range formats {
			out := filepath.Join(baseOut, f, s.ID+"."+f)
			switch f {
			case "pdf":
				po := presetPDFOptions(opt.Preset)
				po.Title = fmt.Sprintf("%s (%s)", s.Script, s.StartedAt.Local().Format("2006-01-02 15:04"))
				if err := TranscriptPDF(entries, out, po); err != nil {
					return written, fmt.Errorf("pdf session %s: %w", s.ID, err)
				}
			case "txt":
				if err := writeText(out, entries, presetTimestamps(opt.Preset)); err != nil {
					return written, fmt.Errorf("txt session %s: %w", s.ID, err)
				}
			}
			written = append(written, out)
		}
	}
	return written, nil
}

func writeText(path string, entries []storage.Entry, timestamps bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := TranscriptText(f, entries, timestamps); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetArchive:
		return []string{"pdf", "txt"}
	default:
		return []string{"pdf"}
	}
}

func presetTimestamps(p PresetName) bool {
	return p == PresetArchive
}

func presetPDFOptions(p PresetName) PDFOptions {
	switch p {
	case PresetArchive:
		return PDFOptions{PageSize: sizeA4, FontSize: 10, Timestamps: true}
	default:
		return PDFOptions{PageSize: sizeA5, FontSize: 11}
	}
}
