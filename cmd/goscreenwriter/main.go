/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"goscreenwriter/internal/backend"
	"goscreenwriter/internal/codec"
	"goscreenwriter/internal/config"
	"goscreenwriter/internal/crash"
	"goscreenwriter/internal/domain"
	"goscreenwriter/internal/importexport"
	applog "goscreenwriter/internal/log"
	"goscreenwriter/internal/script"
	"goscreenwriter/internal/storage"
	"goscreenwriter/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Go Screenwriter")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  goscreenwriter version|-v|--version            Show version")
	_, _ = fmt.Fprintln(w, "  goscreenwriter classify <text>|-              Classify lines of text (- reads stdin)")
	_, _ = fmt.Fprintln(w, "  goscreenwriter import <file>                   Import a screenplay into the library")
	_, _ = fmt.Fprintln(w, "  goscreenwriter export <id|title> <format> [dir]  Export a library screenplay (fdx|docx|pdf|txt)")
	_, _ = fmt.Fprintln(w, "  goscreenwriter convert <file> <format> [dir]   Convert a file without touching the library")
	_, _ = fmt.Fprintln(w, "  goscreenwriter library list|mine|downloads     List library screenplays")
	_, _ = fmt.Fprintln(w, "  goscreenwriter library show|delete <id|title>  Print or remove a screenplay")
	_, _ = fmt.Fprintln(w, "  goscreenwriter library new [title]             Add a screenplay from the template")
	_, _ = fmt.Fprintln(w, "  goscreenwriter library sample                  Add the sample screenplay")
	_, _ = fmt.Fprintln(w, "  goscreenwriter library search <query>          Full-text search over all lines")
	_, _ = fmt.Fprintln(w, "  goscreenwriter backup [dir]                    Copy the library to a backup folder")
	_, _ = fmt.Fprintln(w, "  goscreenwriter backup pg                       Push the library to PostgreSQL")
}

// errUsage marks argument errors; main prints usage and exits with 2.
var errUsage = errors.New("usage")

// app carries everything a command needs.
type app struct {
	cfg      config.AppConfig
	password string
	svc      *importexport.Service
	lib      *storage.Library
	out      io.Writer
	log      *slog.Logger
}

func main() { os.Exit(realMain()) }

// realMain returns the exit code so deferred cleanup runs before os.Exit.
func realMain() int {
	cfg, password, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "config:", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer func() { _ = applog.Close() }()

	a := newApp(cfg, password, os.Stdout)
	defer func() {
		if a.lib != nil {
			if err := a.lib.Close(); err != nil {
				a.log.Error("close library failed", slog.Any("err", err))
			}
		}
	}()
	defer crash.Recover(func() *storage.Library { return a.lib })

	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprintln(os.Stderr, err)
			usage(os.Stderr)
			return 2
		}
		a.log.Error("command failed", slog.Any("err", err))
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newApp(cfg config.AppConfig, password string, out io.Writer) *app {
	return &app{
		cfg:      cfg,
		password: password,
		svc: importexport.New(importexport.Options{
			AllowPlainText:    cfg.Import.AllowPlainText,
			ClassifyPlainText: cfg.Import.ClassifyPlainText,
		}),
		out: out,
		log: applog.WithComponent("cli"),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	a.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(a.out)
		return nil
	}
	cmd, rest := args[0], args[1:]
	ctx = applog.WithContext(ctx, slog.String("cmd", cmd))
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(a.out, version.String())
		return nil
	case "help", "-h", "--help":
		usage(a.out)
		return nil
	case "classify":
		return a.classify(rest)
	case "import":
		return a.importFile(ctx, rest)
	case "export":
		return a.export(rest)
	case "convert":
		return a.convert(rest)
	case "library":
		return a.library(ctx, rest)
	case "backup":
		return a.backup(ctx, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) openLibrary() (*storage.Library, error) {
	if a.lib != nil {
		return a.lib, nil
	}
	dir, err := a.cfg.LibraryDir()
	if err != nil {
		return nil, err
	}
	lib, err := storage.Open(dir, storage.Options{Debounce: a.cfg.Library.SaveDebounce()})
	if err != nil {
		return nil, err
	}
	a.lib = lib
	return lib, nil
}

func (a *app) classify(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: classify requires text or -", errUsage)
	}
	var text string
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	} else {
		text = strings.Join(args, " ")
	}
	s, _ := script.Parse(text)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, ln := range s.Lines {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", ln.LineNo, ln.Type, ln.Text)
	}
	return tw.Flush()
}

func (a *app) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import requires <file>", errUsage)
	}
	doc, err := a.svc.ImportFile(args[0])
	if err != nil {
		return err
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	if err := lib.Upsert(doc); err != nil {
		return err
	}
	a.log.InfoContext(ctx, "imported into library", slog.String("id", doc.ID), slog.Int("lines", len(doc.Lines)))
	_, _ = fmt.Fprintf(a.out, "Imported %q (%d lines, ~%d pages) as %s\n", doc.Title, len(doc.Lines), doc.PageEstimate(), doc.ID)
	return nil
}

func (a *app) export(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: export requires <id|title> <format> [dir]", errUsage)
	}
	f, err := codec.ParseFormat(args[1])
	if err != nil {
		return err
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	doc, err := find(lib, args[0])
	if err != nil {
		return err
	}
	path, err := a.svc.ExportFile(doc, f, a.outDir(args[2:]))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) convert(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: convert requires <file> <format> [dir]", errUsage)
	}
	f, err := codec.ParseFormat(args[1])
	if err != nil {
		return err
	}
	path, err := a.svc.Convert(args[0], f, a.outDir(args[2:]))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) outDir(opt []string) string {
	if len(opt) > 0 {
		return opt[0]
	}
	return a.cfg.Export.Dir
}

func (a *app) library(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: library requires a subcommand", errUsage)
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	switch args[0] {
	case "list":
		return a.printDocs(lib.All())
	case "mine":
		return a.printDocs(lib.MyScripts())
	case "downloads":
		return a.printDocs(lib.Downloads())
	case "show":
		if len(args) != 2 {
			return fmt.Errorf("%w: library show requires <id|title>", errUsage)
		}
		doc, err := find(lib, args[1])
		if err != nil {
			return err
		}
		return a.printDoc(doc)
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("%w: library delete requires <id|title>", errUsage)
		}
		doc, err := find(lib, args[1])
		if err != nil {
			return err
		}
		if err := lib.Delete(doc.ID); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Deleted %q\n", doc.Title)
		return nil
	case "new":
		doc := domain.NewFromTemplate(strings.Join(args[1:], " "))
		if err := lib.Upsert(doc); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Created %q as %s\n", doc.Title, doc.ID)
		return nil
	case "sample":
		doc := domain.Sample()
		if err := lib.Upsert(doc); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Added %q as %s\n", doc.Title, doc.ID)
		return nil
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("%w: library search requires <query>", errUsage)
		}
		return a.search(ctx, lib, strings.Join(args[1:], " "))
	}
	return fmt.Errorf("%w: unknown library subcommand %q", errUsage, args[0])
}

func (a *app) search(ctx context.Context, lib *storage.Library, q string) error {
	ix, err := storage.OpenIndex(lib.Dir)
	if err != nil {
		return err
	}
	defer ix.Close()
	if err := ix.Rebuild(ctx, lib.All()); err != nil {
		return err
	}
	res, err := ix.Search(ctx, storage.SearchQuery{Text: q, Limit: 50})
	if err != nil {
		return err
	}
	if len(res) == 0 {
		_, _ = fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range res {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Title, r.Position+1, r.Type, r.Snippet)
	}
	return tw.Flush()
}

func (a *app) backup(ctx context.Context, args []string) error {
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	if len(args) == 1 && args[0] == "pg" {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		b, err := backend.Open(pctx, a.cfg.Backup.PostgresDSN(a.password))
		if err != nil {
			return err
		}
		defer b.Close()
		n, err := b.Push(pctx, lib.All())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Pushed %d screenplays\n", n)
		return nil
	}
	dest := a.cfg.Library.BackupDir
	if len(args) > 0 {
		dest = args[0]
	}
	path, err := lib.BackupToFolder(dest)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "Backed up to", path)
	return nil
}

// find resolves a library document by exact id, then by case-insensitive title.
func find(lib *storage.Library, key string) (*domain.Document, error) {
	if doc, err := lib.Get(key); err == nil {
		return doc, nil
	}
	var match *domain.Document
	for _, d := range lib.All() {
		if strings.EqualFold(d.Title, key) {
			if match != nil {
				return nil, fmt.Errorf("title %q is ambiguous; use the id", key)
			}
			match = d
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return match, nil
}

func (a *app) printDocs(docs []*domain.Document) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tLINES\tPAGES\tSOURCE\tUPDATED")
	for _, d := range docs {
		src := "written"
		if d.Imported {
			src = "imported"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", d.ID, d.Title, strconv.Itoa(len(d.Lines)), d.PageEstimate(), src, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *app) printDoc(d *domain.Document) error {
	_, _ = fmt.Fprintln(a.out, d.Title)
	if d.Author != "" {
		_, _ = fmt.Fprintln(a.out, "by", d.Author)
	}
	_, _ = fmt.Fprintln(a.out)
	for _, ln := range d.Lines {
		_, _ = fmt.Fprintln(a.out, layoutLine(ln))
	}
	return nil
}

// pageColumns is the width of a Courier 12 text column between 1in margins.
const pageColumns = 60

// layoutLine renders ln in a fixed-width column using its type's layout.
func layoutLine(ln domain.Line) string {
	lay := ln.Type.Layout()
	text := ln.Display()
	indent := int(lay.Indent / 7.2) // Courier 12 advances 7.2pt per glyph
	if lay.Align == domain.AlignCenter {
		if pad := (pageColumns - utf8.RuneCountInString(text)) / 2; pad > indent {
			indent = pad
		}
	}
	return strings.Repeat(" ", indent) + text
}
