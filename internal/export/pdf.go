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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"govn/internal/dialogue"
	"govn/internal/storage"
)

// PDFOptions controls transcript PDF export.
// Units are points (pt). Text uses the built-in Helvetica, so characters
// outside cp1252 are replaced.
type PDFOptions struct {
	Title      string
	PageSize   gofpdf.SizeType // zero means A4
	FontSize   float64         // zero means 11
	Timestamps bool
}

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("export: empty transcript")

var (
	sizeA4 = gofpdf.SizeType{Wd: 595.28, Ht: 841.89}
	sizeA5 = gofpdf.SizeType{Wd: 419.53, Ht: 595.28}
)

const margin = 48.0

// Plain removes styling tags from revealed text.
func Plain(s string) string {
	p, _ := dialogue.PlainText(s)
	return p
}

// TranscriptPDF writes entries to a single PDF at outPath. Speakers are set in
// bold, narration in italics.
func TranscriptPDF(entries []storage.Entry, outPath string, opt PDFOptions) error {
	if len(entries) == 0 {
		return ErrEmptyTranscript
	}
	size := opt.PageSize
	if size.Wd <= 0 || size.Ht <= 0 {
		size = sizeA4
	}
	fs := opt.FontSize
	if fs <= 0 {
		fs = 11
	}
	lineH := fs * 1.35

	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := opt.Title
	if title == "" {
		title = "Transcript " + entries[0].Session
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("govn", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + fs)
		pdf.SetFont("Helvetica", "I", fs-2)
		pdf.CellFormat(0, fs, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", fs+5)
	pdf.MultiCell(0, (fs+5)*1.35, tr(title), "", "L", false)
	pdf.Ln(lineH / 2)

	for _, e := range entries {
		if opt.Timestamps {
			pdf.SetFont("Helvetica", "", fs-3)
			pdf.SetTextColor(120, 120, 120)
			pdf.CellFormat(0, fs, e.TS.Local().Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
		text := tr(Plain(e.What))
		if e.Who == "" {
			pdf.SetFont("Helvetica", "I", fs)
			pdf.MultiCell(0, lineH, text, "", "L", false)
		} else {
			pdf.SetFont("Helvetica", "B", fs)
			pdf.CellFormat(0, lineH, tr(e.Who), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", fs)
			pdf.MultiCell(0, lineH, text, "", "L", false)
		}
		pdf.Ln(lineH / 2)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
