/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package codec translates between screenplay documents and external file
// formats. Each format is one Codec; a Registry maps format identifiers and
// file extensions to codecs.
package codec

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"goscreenwriter/internal/domain"
)

// Format identifies an external representation.
type Format string

const (
	FDX  Format = "fdx"
	DOCX Format = "docx"
	PDF  Format = "pdf"
	Text Format = "txt"
)

// Extension returns the canonical file extension including the dot.
func (f Format) Extension() string { return "." + string(f) }

// ParseFormat accepts identifiers such as "fdx", ".FDX" or "Docx".
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "fdx":
		return FDX, nil
	case "docx":
		return DOCX, nil
	case "pdf":
		return PDF, nil
	case "txt", "text":
		return Text, nil
	}
	return "", Unsupported(s)
}

// Codec is the decode/encode pair for one format. Implementations keep no
// state between calls and never mutate the document passed to Encode.
type Codec interface {
	Format() Format
	Extensions() []string
	// Decode parses data into a fresh document titled title, with new line ids.
	Decode(data []byte, title string) (*domain.Document, error)
	Encode(doc *domain.Document) ([]byte, error)
}

// Registry selects codecs by format or by file extension.
type Registry struct {
	byFormat map[Format]Codec
	byExt    map[string]Codec
}

// NewRegistry registers the given codecs. A later codec claiming the same
// format or extension replaces an earlier one.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{byFormat: map[Format]Codec{}, byExt: map[string]Codec{}}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register adds c to the registry.
func (r *Registry) Register(c Codec) {
	r.byFormat[c.Format()] = c
	for _, e := range c.Extensions() {
		r.byExt[strings.ToLower(e)] = c
	}
}

// Lookup returns the codec for format f.
func (r *Registry) Lookup(f Format) (Codec, bool) {
	c, ok := r.byFormat[f]
	return c, ok
}

// ForPath returns the codec registered for the extension of path (case-insensitive).
func (r *Registry) ForPath(path string) (Codec, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, false
	}
	c, ok := r.byExt[ext]
	return c, ok
}

// Formats lists registered formats, sorted.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.byFormat))
	for f := range r.byFormat {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Options configures the default codec set.
type Options struct {
	// Extractor pulls linear text out of PDF bytes. Nil selects TabulaExtractor.
	Extractor TextExtractor
	// ClassifyPlainText makes the plain-text codec run the classifier instead
	// of typing every line as text.
	ClassifyPlainText bool
}

// Default returns a registry holding the FDX, DOCX, PDF and plain-text codecs.
func Default(opts Options) *Registry {
	ext := opts.Extractor
	if ext == nil {
		ext = TabulaExtractor{}
	}
	return NewRegistry(
		FDXCodec{},
		DOCXCodec{},
		PDFCodec{Extractor: ext},
		PlainTextCodec{Classify: opts.ClassifyPlainText},
	)
}

// imported finalizes a decoded document.
func imported(title string, lines []domain.Line) *domain.Document {
	d := domain.NewDocument(title, lines)
	d.Imported = true
	return d
}

func requireDoc(f Format, doc *domain.Document) error {
	if doc == nil {
		return newError(KindParseFailure, f, "encode", fmt.Errorf("nil document"))
	}
	return nil
}
