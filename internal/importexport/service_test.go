/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package importexport

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goscreenwriter/internal/codec"
	"goscreenwriter/internal/domain"
)

func TestImportDispatchesOnExtensionCaseInsensitive(t *testing.T) {
	svc := New(DefaultOptions())
	fdx, err := svc.Export(domain.Sample(), codec.FDX)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "Garage Draft.FDX")
	if err := os.WriteFile(path, fdx, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := svc.ImportFile(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if doc.Title != "Garage Draft" || !doc.Imported {
		t.Fatalf("unexpected document metadata: %q imported=%v", doc.Title, doc.Imported)
	}
	if len(doc.Lines) != len(domain.Sample().Lines) {
		t.Fatalf("unexpected line count %d", len(doc.Lines))
	}
}

func TestUnsupportedExtensionPolicy(t *testing.T) {
	data := []byte("INT. HOUSE - DAY\n\nJOHN\nHello.\n")

	strict := New(Options{AllowPlainText: false})
	if _, err := strict.Import("notes.xyz", data); !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}

	lenient := New(DefaultOptions())
	doc, err := lenient.Import("notes.xyz", data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(doc.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(doc.Lines))
	}
	for _, l := range doc.Lines {
		if l.Type != domain.Text {
			t.Fatalf("expected text lines, got %s", l.Type)
		}
	}
}

func TestImportSniffsContentForUnknownExtension(t *testing.T) {
	svc := New(Options{AllowPlainText: false})
	docx, err := svc.Export(domain.Sample(), codec.DOCX)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	doc, err := svc.Import("attachment.bin", docx)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if doc.Lines[0].Type != domain.Scene {
		t.Fatalf("expected scene heading first, got %s", doc.Lines[0].Type)
	}
}

func TestImportErrorsAreNormalized(t *testing.T) {
	svc := New(DefaultOptions())
	if _, err := svc.ImportFile(filepath.Join(t.TempDir(), "missing.fdx")); !errors.Is(err, codec.ErrIOFailure) {
		t.Fatalf("expected io failure, got %v", err)
	}
	doc, err := svc.Import("broken.fdx", []byte("<FinalDraft><Content>"))
	if doc != nil || !errors.Is(err, codec.ErrParseFailure) {
		t.Fatalf("expected parse failure and no document, got %v %v", doc, err)
	}
	if _, err := svc.Import("broken.docx", []byte("PK not really")); !errors.Is(err, codec.ErrCorruptContainer) {
		t.Fatalf("expected corrupt container, got %v", err)
	}
}

func TestImportPDFUsesExtractor(t *testing.T) {
	svc := New(Options{Extractor: codec.TextExtractorFunc(func([]byte) (string, error) {
		return "EXT. FIELD - DAY\nWind.", nil
	})})
	doc, err := svc.Import("field.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(doc.Lines) != 2 || doc.Lines[0].Type != domain.Scene {
		t.Fatalf("unexpected lines: %+v", doc.Lines)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	svc := New(DefaultOptions())
	if _, err := svc.Export(domain.Sample(), codec.Format("rtf")); !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestExportFileIsAtomicAndReplaces(t *testing.T) {
	svc := New(DefaultOptions())
	dir := t.TempDir()
	doc := domain.Sample()
	doc.SetTitle(`Act 1: "Garage"/Take?`)

	path, err := svc.ExportFile(doc, codec.DOCX, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, ".docx") {
		t.Fatalf("unexpected path %s", path)
	}
	if strings.ContainsAny(filepath.Base(path), `:"/?`) {
		t.Fatalf("unsafe file name %s", filepath.Base(path))
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	doc.AppendLine(domain.Action, "One more line.")
	if _, err := svc.ExportFile(doc, codec.DOCX, dir); err != nil {
		t.Fatalf("re-export: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(first) == string(second) {
		t.Fatalf("file was not replaced")
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) != 1 {
		var names []string
		for _, e := range ents {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only the exported file, found %v", names)
	}
}

func TestExportFileFailureLeavesNoFile(t *testing.T) {
	svc := New(DefaultOptions())
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// dir is a regular file, so nothing can be created below it
	_, err := svc.ExportFile(domain.Sample(), codec.FDX, filepath.Join(blocker, "out"))
	if !errors.Is(err, codec.ErrIOFailure) {
		t.Fatalf("expected io failure, got %v", err)
	}
	if _, err := svc.ExportFile(nil, codec.FDX, dir); err == nil {
		t.Fatalf("expected error for nil document")
	}
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("unexpected files left behind: %d", len(ents))
	}
}

func TestConvert(t *testing.T) {
	svc := New(DefaultOptions())
	dir := t.TempDir()
	src := filepath.Join(dir, "scene.txt")
	if err := os.WriteFile(src, []byte("INT. HOUSE - DAY\nJOHN\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := svc.Convert(src, codec.FDX, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if filepath.Base(out) != "scene.fdx" {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestTitleFromName(t *testing.T) {
	cases := map[string]string{
		"/tmp/My Script.fdx":      "My Script",
		`C:\scripts\draft.v2.pdf`: "draft.v2",
		"noext":                   "noext",
		".fdx":                    "Untitled",
	}
	for in, want := range cases {
		if got := TitleFromName(in); got != want {
			t.Fatalf("TitleFromName(%q) = %q, want %q", in, got, want)
		}
	}
}
