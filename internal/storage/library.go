/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"goscreenwriter/internal/domain"
	applog "goscreenwriter/internal/log"
	"goscreenwriter/internal/undo"
)

const (
	LibraryFileName = "scripts.json"
	BackupsDirName  = "backups"
	// BackupFileName is the file written by BackupToFolder.
	BackupFileName = "scripts-backup.json"

	DefaultSaveDebounce = 400 * time.Millisecond

	// keepBackups bounds the timestamped copies kept in the backups folder.
	keepBackups = 10
)

var (
	ErrNotFound          = errors.New("script not found")
	ErrClosed            = errors.New("library is closed")
	ErrBackupUnavailable = errors.New("backup destination unavailable")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrNothingToRedo     = errors.New("nothing to redo")
)

//go:embed scripts.schema.json
var librarySchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(librarySchema)

// Options tunes a Library. Zero values select the defaults.
type Options struct {
	// Debounce delays persistence after a mutation; further mutations within
	// the window push the save out again.
	Debounce time.Duration
	// Seed provides the documents used when nothing usable is on disk.
	Seed func() []*domain.Document
	// History bounds the per-document undo history. Zero means undo.DefaultConfig().
	History undo.Config
}

func defaultSeed() []*domain.Document { return []*domain.Document{domain.Sample()} }

// Library is the keyed collection of screenplays persisted as one JSON array.
// All methods are safe for concurrent use. Documents handed in or out are
// copies; callers never share memory with the store.
type Library struct {
	Dir  string
	Path string

	debounce time.Duration
	log      *slog.Logger
	history  *undo.Manager

	mu      sync.Mutex
	docs    []*domain.Document
	timer   *time.Timer
	dirty   bool
	closed  bool
	saveErr error
	seeded  bool
}

// Open loads the library stored in dir, creating the directory if needed.
// A missing, empty or invalid scripts.json yields the seed documents; an
// invalid file is first copied to the backups folder with a ".corrupt" suffix.
func Open(dir string, opts Options) (*Library, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("library dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultSaveDebounce
	}
	if opts.Seed == nil {
		opts.Seed = defaultSeed
	}
	if opts.History == (undo.Config{}) {
		opts.History = undo.DefaultConfig()
	}
	lib := &Library{
		Dir:      dir,
		Path:     filepath.Join(dir, LibraryFileName),
		debounce: opts.Debounce,
		log:      applog.WithComponent("storage").With(slog.String("dir", dir)),
		history:  undo.NewManager(opts.History),
	}
	docs, err := lib.load()
	if err != nil {
		lib.log.Warn("library unreadable, seeding", slog.Any("err", err))
		docs = opts.Seed()
		lib.seeded = true
	}
	lib.docs = make([]*domain.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			lib.docs = append(lib.docs, d.Clone())
		}
	}
	return lib, nil
}

// load reads and validates the library file. Any failure means "start from seed".
func (l *Library) load() ([]*domain.Document, error) {
	b, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("library file is empty")
	}
	if verr := validateLibrary(b); verr != nil {
		l.quarantine(b)
		return nil, verr
	}
	var docs []*domain.Document
	if uerr := json.Unmarshal(b, &docs); uerr != nil {
		l.quarantine(b)
		return nil, fmt.Errorf("parse library: %w", uerr)
	}
	return docs, nil
}

// validateLibrary checks raw library bytes against the embedded JSON schema.
func validateLibrary(data []byte) error {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate library: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("library does not match schema: %s", strings.Join(msgs, "; "))
}

// quarantine keeps a copy of an unusable library file next to the regular backups.
func (l *Library) quarantine(data []byte) {
	bdir := filepath.Join(l.Dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		l.log.Warn("create backups dir failed", slog.Any("err", err))
		return
	}
	name := fmt.Sprintf("%s.%s.corrupt", LibraryFileName, time.Now().Format("20060102-150405"))
	if err := writeFileSync(filepath.Join(bdir, name), data); err != nil {
		l.log.Warn("quarantine library failed", slog.Any("err", err))
	}
}

// Seeded reports whether Open fell back to the seed documents.
func (l *Library) Seeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seeded
}

func (l *Library) indexOf(id string) int {
	for i, d := range l.docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(docs []*domain.Document, keep func(*domain.Document) bool) []*domain.Document {
	out := make([]*domain.Document, 0, len(docs))
	for _, d := range docs {
		if keep == nil || keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// All returns every document in library order.
func (l *Library) All() []*domain.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneAll(l.docs, nil)
}

// MyScripts returns the documents written in the app.
func (l *Library) MyScripts() []*domain.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneAll(l.docs, func(d *domain.Document) bool { return !d.Imported })
}

// Downloads returns the documents that came in through import.
func (l *Library) Downloads() []*domain.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneAll(l.docs, func(d *domain.Document) bool { return d.Imported })
}

// Get returns a copy of the document with the given id.
func (l *Library) Get(id string) (*domain.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.docs[i].Clone(), nil
}

// Upsert replaces the document with the same id or appends it.
// Replacing records the previous version in the document's undo history.
func (l *Library) Upsert(doc *domain.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if strings.TrimSpace(doc.ID) == "" {
		return errors.New("document id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	c := doc.Clone()
	if i := l.indexOf(doc.ID); i >= 0 {
		if prev, err := json.Marshal(l.docs[i]); err == nil {
			l.history.Push(undo.Snapshot{Key: doc.ID, Blob: prev, TS: time.Now()})
		}
		l.docs[i] = c
	} else {
		l.docs = append(l.docs, c)
	}
	l.scheduleLocked()
	return nil
}

// Delete removes the document with the given id.
func (l *Library) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.docs = append(l.docs[:i], l.docs[i+1:]...)
	l.history.Clear(id)
	l.scheduleLocked()
	return nil
}

// Undo restores the version of document id before its last Upsert and
// returns it.
func (l *Library) Undo(id string) (*domain.Document, error) {
	return l.step(id, l.history.Undo, ErrNothingToUndo)
}

// Redo reapplies the change most recently reverted by Undo.
func (l *Library) Redo(id string) (*domain.Document, error) {
	return l.step(id, l.history.Redo, ErrNothingToRedo)
}

func (l *Library) step(id string, move func(string, []byte) (undo.Snapshot, bool), empty error) (*domain.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	i := l.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cur, err := json.Marshal(l.docs[i])
	if err != nil {
		return nil, fmt.Errorf("marshal current: %w", err)
	}
	snap, ok := move(id, cur)
	if !ok {
		return nil, empty
	}
	var d domain.Document
	if err := json.Unmarshal(snap.Blob, &d); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	l.docs[i] = &d
	l.scheduleLocked()
	return d.Clone(), nil
}

func (l *Library) scheduleLocked() {
	l.dirty = true
	if l.timer == nil {
		l.timer = time.AfterFunc(l.debounce, l.debouncedSave)
		return
	}
	l.timer.Reset(l.debounce)
}

func (l *Library) debouncedSave() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return
	}
	if err := l.saveLocked(); err != nil {
		l.log.Error("save library failed", slog.Any("err", err))
	}
}

// Flush writes the library to disk now and returns the outcome.
func (l *Library) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	return l.saveLocked()
}

// Close stops the debounce timer and persists pending changes.
// Further mutations fail with ErrClosed.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
	}
	if !l.dirty {
		return nil
	}
	return l.saveLocked()
}

// saveLocked writes the documents with a timestamped backup of the previous
// file and an atomic temp+rename replace.
func (l *Library) saveLocked() error {
	data, err := json.MarshalIndent(l.docs, "", "  ")
	if err != nil {
		l.saveErr = fmt.Errorf("marshal library: %w", err)
		return l.saveErr
	}
	data = append(data, '\n')

	if _, statErr := os.Stat(l.Path); statErr == nil {
		bdir := filepath.Join(l.Dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", LibraryFileName, stamp))
		if cerr := copyFile(l.Path, bpath); cerr != nil {
			l.saveErr = fmt.Errorf("backup current library: %w", cerr)
			return l.saveErr
		}
		pruneBackups(bdir, keepBackups)
	}

	temp := filepath.Join(l.Dir, fmt.Sprintf(".%s.tmp-%d-%d", LibraryFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		l.saveErr = fmt.Errorf("write temp library: %w", werr)
		return l.saveErr
	}
	if rerr := os.Rename(temp, l.Path); rerr != nil {
		_ = os.Remove(temp)
		l.saveErr = fmt.Errorf("replace library: %w", rerr)
		return l.saveErr
	}
	l.dirty = false
	l.saveErr = nil
	l.log.Debug("library saved", slog.Int("documents", len(l.docs)))
	return nil
}

// LastSaveError returns the error of the most recent save attempt, if any.
func (l *Library) LastSaveError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveErr
}

// BackupToFolder flushes the library and copies scripts.json to
// <dest>/scripts-backup.json, replacing an older backup.
func (l *Library) BackupToFolder(dest string) (string, error) {
	if strings.TrimSpace(dest) == "" {
		return "", ErrBackupUnavailable
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupUnavailable, err)
	}
	if err := l.Flush(); err != nil {
		return "", err
	}
	target := filepath.Join(dest, BackupFileName)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := copyFile(l.Path, target); err != nil {
		return "", fmt.Errorf("copy library backup: %w", err)
	}
	l.log.Info("library backed up", slog.String("dest", target))
	return target, nil
}

// pruneBackups keeps the newest n timestamped backups in dir.
func pruneBackups(dir string, n int) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var baks []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, LibraryFileName+".") && strings.HasSuffix(name, ".bak") {
			baks = append(baks, name)
		}
	}
	if len(baks) <= n {
		return
	}
	sort.Strings(baks) // timestamp in name yields lexicographic order
	for _, name := range baks[:len(baks)-n] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
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

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
