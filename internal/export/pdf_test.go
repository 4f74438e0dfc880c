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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"govn/internal/storage"
)

func sampleEntries() []storage.Entry {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []storage.Entry{
		{Session: "s1", Seq: 1, LineID: "a", What: "Rain against the window.", Outcome: "completed", TS: ts},
		{Session: "s1", Seq: 2, LineID: "b", Who: "Eileen", What: "Did you hear {b}that{/b}?\nListen.", Outcome: "completed", TS: ts.Add(time.Second)},
		{Session: "s1", Seq: 3, LineID: "c", Who: "Lucy", What: "Café is closed.", Outcome: "abandoned", TS: ts.Add(2 * time.Second)},
	}
}

func TestTranscriptPDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "s1.pdf")
	if err := TranscriptPDF(sampleEntries(), out, PDFOptions{Timestamps: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:min(len(b), 16)])
	}
}

func TestTranscriptPDF_Empty(t *testing.T) {
	err := TranscriptPDF(nil, filepath.Join(t.TempDir(), "x.pdf"), PDFOptions{})
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestPlainStripsStyleTags(t *testing.T) {
	got := Plain("{color=#f00}Red{/color} and {i}slanted{/i} {unknown}")
	if got != "Red and slanted {unknown}" {
		t.Fatalf("Plain = %q", got)
	}
}

func TestTranscriptText(t *testing.T) {
	var buf bytes.Buffer
	if err := TranscriptText(&buf, sampleEntries(), false); err != nil {
		t.Fatalf("text: %v", err)
	}
	got := buf.String()
	for _, want := range []string{
		"Rain against the window.\n\n",
		"Eileen: Did you hear that?\n        Listen.\n\n",
		"Lucy: Café is closed.\n\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}
