/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jung-kurt/gofpdf"
	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/format"

	"goscreenwriter/internal/domain"
	applog "goscreenwriter/internal/log"
	"goscreenwriter/internal/script"
)

// PDF page layout. Units are points (pt); the page is US Letter.
const (
	pdfPageWidth  = 612.0
	pdfPageHeight = 792.0
	pdfMargin     = 72.0
	pdfFontFamily = "Courier"
	pdfFontSize   = 12.0
	pdfLineHeight = 14.0
)

// TextExtractor returns the linear text of a PDF: pages in order, lines
// top to bottom, separated by newlines.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// TextExtractorFunc adapts a function to TextExtractor.
type TextExtractorFunc func(data []byte) (string, error)

func (fn TextExtractorFunc) ExtractText(data []byte) (string, error) { return fn(data) }

// TabulaExtractor extracts text with github.com/tsawler/tabula. The library
// reads from a path, so the bytes are spooled to a temporary file that is
// removed before returning.
type TabulaExtractor struct {
	// TempDir is where the spool file is created; empty means os.TempDir().
	TempDir string
}

func (t TabulaExtractor) ExtractText(data []byte) (text string, err error) {
	f, err := os.CreateTemp(t.TempDir, ".scw-import-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	name := f.Name()
	defer func() { _ = os.Remove(name) }()
	if _, werr := f.Write(data); werr != nil {
		_ = f.Close()
		return "", fmt.Errorf("write spool file: %w", werr)
	}
	if cerr := f.Close(); cerr != nil {
		return "", fmt.Errorf("close spool file: %w", cerr)
	}

	text, warnings, err := tabula.Open(name).Text()
	if err != nil {
		return "", err
	}
	if len(warnings) > 0 {
		applog.WithOperation(applog.WithComponent("codec"), "pdf_extract").Debug("extraction warnings",
			slog.Int("count", len(warnings)), slog.String("first", fmt.Sprint(warnings[0])))
	}
	return text, nil
}

// PDFCodec renders documents as fixed monospaced pages and imports PDFs by
// classifying their extracted text. Import does no layout analysis.
type PDFCodec struct {
	Extractor TextExtractor
}

func (PDFCodec) Format() Format       { return PDF }
func (PDFCodec) Extensions() []string { return []string{".pdf"} }

// Decode extracts the text, drops blank lines and classifies the rest.
func (c PDFCodec) Decode(data []byte, title string) (*domain.Document, error) {
	if format.DetectFromMagic(data) != format.PDF {
		return nil, parseErr(PDF, "decode", errors.New("missing %PDF header"))
	}
	ex := c.Extractor
	if ex == nil {
		ex = TabulaExtractor{}
	}
	text, err := ex.ExtractText(data)
	if err != nil {
		return nil, parseErr(PDF, "decode", fmt.Errorf("extract text: %w", err))
	}
	s, errs := script.Parse(text)
	if len(errs) > 0 {
		return nil, parseErr(PDF, "decode", errs[0])
	}
	d := s.Document(title)
	d.Imported = true
	return d, nil
}

// pdfRow is one line of output before wrapping.
type pdfRow struct {
	text   string
	layout domain.Layout
	style  domain.TextStyle
}

// titleRows builds the rows drawn ahead of the body: the title, "by <author>"
// when an author is set, and one blank separator line.
func titleRows(doc *domain.Document) []pdfRow {
	var rows []pdfRow
	plain := domain.Text.Layout()
	if doc.Title != "" {
		rows = append(rows, pdfRow{text: doc.Title, layout: plain})
	}
	if doc.Author != "" {
		rows = append(rows, pdfRow{text: "by " + doc.Author, layout: plain})
	}
	if len(rows) > 0 {
		rows = append(rows, pdfRow{layout: plain})
	}
	return rows
}

// Encode lays the document out on Letter pages in Courier. Each line is
// indented by its type's layout and wrapped to the remaining width; a new
// page starts when the next row would cross the bottom margin.
func (c PDFCodec) Encode(doc *domain.Document) ([]byte, error) {
	if err := requireDoc(PDF, doc); err != nil {
		return nil, err
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pdfPageWidth, Ht: pdfPageHeight},
	})
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetCellMargin(0)
	pdf.SetTitle(doc.Title, true)
	if doc.Author != "" {
		pdf.SetAuthor(doc.Author, true)
	}
	pdf.SetCreator("goscreenwriter", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	rows := titleRows(doc)
	for _, l := range doc.Lines {
		rows = append(rows, pdfRow{text: l.Display(), layout: l.Type.Layout(), style: l.Style})
	}

	pdf.AddPage()
	y := pdfMargin
	bottom := pdfPageHeight - pdfMargin
	for _, r := range rows {
		pdf.SetFont(pdfFontFamily, fontStyle(r.style), pdfFontSize)
		x := pdfMargin + r.layout.Indent
		w := pdfPageWidth - 2*pdfMargin - 2*r.layout.Indent
		align := "L"
		if r.layout.Align == domain.AlignCenter {
			align = "C"
		}
		segs := pdf.SplitLines([]byte(tr(r.text)), w)
		if len(segs) == 0 {
			segs = [][]byte{nil}
		}
		for _, seg := range segs {
			if y+pdfLineHeight > bottom {
				pdf.AddPage()
				y = pdfMargin
			}
			pdf.SetXY(x, y)
			pdf.CellFormat(w, pdfLineHeight, string(seg), "", 0, align, false, 0, "")
			y += pdfLineHeight
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, newError(KindIOFailure, PDF, "encode", fmt.Errorf("write pdf: %w", err))
	}
	return buf.Bytes(), nil
}

// fontStyle maps text flags to a gofpdf style string. Courier has bold and
// italic faces; underline and strikeout are drawn by gofpdf.
func fontStyle(s domain.TextStyle) string {
	out := ""
	if s.Bold {
		out += "B"
	}
	if s.Italic {
		out += "I"
	}
	if s.Underline {
		out += "U"
	}
	if s.Strikethrough {
		out += "S"
	}
	return out
}
