/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package importexport is the entry point for moving screenplays in and out
// of the application. It picks a codec by file extension or content and maps
// every failure into the codec error taxonomy; it holds no format logic itself.
package importexport

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"goscreenwriter/internal/codec"
	"goscreenwriter/internal/domain"
	applog "goscreenwriter/internal/log"
)

// Options configures a Service.
type Options struct {
	// AllowPlainText imports files no codec recognizes as plain text. When
	// false such files fail with an unsupported format error.
	AllowPlainText bool
	// ClassifyPlainText runs the classifier over plain-text imports instead of
	// typing every line as text.
	ClassifyPlainText bool
	// Extractor overrides PDF text extraction.
	Extractor codec.TextExtractor
	// Registry overrides the codec set. When set, ClassifyPlainText and
	// Extractor are ignored.
	Registry *codec.Registry
}

// DefaultOptions enables the plain-text fallback.
func DefaultOptions() Options { return Options{AllowPlainText: true} }

// Service dispatches imports and exports to codecs. It is safe for concurrent use.
type Service struct {
	reg        *codec.Registry
	allowPlain bool
}

// New builds a Service.
func New(opts Options) *Service {
	reg := opts.Registry
	if reg == nil {
		reg = codec.Default(codec.Options{Extractor: opts.Extractor, ClassifyPlainText: opts.ClassifyPlainText})
	}
	return &Service{reg: reg, allowPlain: opts.AllowPlainText}
}

// Formats lists the formats the service can export to.
func (s *Service) Formats() []codec.Format { return s.reg.Formats() }

// ImportFile reads path and decodes it. Read errors are IOFailure.
func (s *Service) ImportFile(path string) (*domain.Document, error) {
	l := applog.WithOperation(applog.WithComponent("importexport"), "import_file").With(slog.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		l.Error("read failed", slog.Any("err", err))
		return nil, codec.IOFailure("", "import", err)
	}
	return s.Import(path, data)
}

// Import decodes data. name supplies the extension used for dispatch and the
// document title (its base name without extension).
func (s *Service) Import(name string, data []byte) (*domain.Document, error) {
	l := applog.WithOperation(applog.WithComponent("importexport"), "import").With(slog.String("name", name))
	c, how, err := s.pick(name, data)
	if err != nil {
		l.Warn("no codec", slog.Any("err", err))
		return nil, err
	}
	start := time.Now()
	doc, err := c.Decode(data, TitleFromName(name))
	if err != nil {
		err = codec.Normalize(c.Format(), "import", err)
		l.Error("decode failed", slog.String("format", string(c.Format())), slog.Any("err", err))
		return nil, err
	}
	l.Info("imported",
		slog.String("format", string(c.Format())),
		slog.String("via", how),
		slog.Int("lines", len(doc.Lines)),
		slog.Duration("took", time.Since(start)))
	return doc, nil
}

// pick selects the codec: by extension, then by content, then the plain-text
// fallback when allowed.
func (s *Service) pick(name string, data []byte) (codec.Codec, string, error) {
	if c, ok := s.reg.ForPath(name); ok {
		return c, "extension", nil
	}
	if f, ok := codec.Sniff(data); ok {
		if c, ok := s.reg.Lookup(f); ok {
			return c, "content", nil
		}
	}
	if s.allowPlain {
		if c, ok := s.reg.Lookup(codec.Text); ok {
			return c, "fallback", nil
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = filepath.Base(name)
	}
	return nil, "", codec.Unsupported(ext)
}

// Export encodes doc in format f.
func (s *Service) Export(doc *domain.Document, f codec.Format) ([]byte, error) {
	c, ok := s.reg.Lookup(f)
	if !ok {
		return nil, codec.Unsupported(string(f))
	}
	data, err := c.Encode(doc)
	if err != nil {
		return nil, codec.Normalize(f, "export", err)
	}
	return data, nil
}

// ExportFile encodes doc and writes it to <dir>/<title>.<ext>, replacing any
// existing file. The bytes go to a temporary file in dir that is renamed into
// place, so the final path never holds partial output. An empty dir means
// the system temp directory. It returns the written path.
func (s *Service) ExportFile(doc *domain.Document, f codec.Format, dir string) (string, error) {
	l := applog.WithOperation(applog.WithComponent("importexport"), "export_file").With(slog.String("format", string(f)))
	data, err := s.Export(doc, f)
	if err != nil {
		l.Error("encode failed", slog.Any("err", err))
		return "", err
	}
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", codec.IOFailure(f, "export", fmt.Errorf("ensure out dir: %w", err))
	}
	out := filepath.Join(dir, FileName(doc.Title, f))
	if err := writeAtomic(out, data); err != nil {
		l.Error("write failed", slog.String("path", out), slog.Any("err", err))
		return "", codec.IOFailure(f, "export", err)
	}
	l.Info("exported", slog.String("path", out), slog.Int("bytes", len(data)))
	return out, nil
}

// Convert imports src and exports it to dir in format f.
func (s *Service) Convert(src string, f codec.Format, dir string) (string, error) {
	doc, err := s.ImportFile(src)
	if err != nil {
		return "", err
	}
	return s.ExportFile(doc, f, dir)
}

// TitleFromName returns the base name of path without its extension.
func TitleFromName(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(title) == "" || title == "." {
		return "Untitled"
	}
	return title
}

// FileName builds a file name from a document title, replacing characters
// that are not allowed in file names on common platforms.
func FileName(title string, f codec.Format) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ". ")
	if name == "" {
		name = "Untitled"
	}
	return name + f.Extension()
}

// writeAtomic writes data to a temp file next to path, then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileSync writes data to a new file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
