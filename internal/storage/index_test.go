/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"goscreenwriter/internal/domain"
)

func openIndex(t *testing.T, dir string) *Index {
	t.Helper()
	ix, err := OpenIndex(dir)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func indexFixture() []*domain.Document {
	a := domain.NewDocument("Harbor", []domain.Line{
		domain.NewLine(domain.Scene, "EXT. HARBOR - NIGHT"),
		domain.NewLine(domain.Action, "Waves slap the pier."),
		domain.NewLine(domain.Character, "MARA"),
		domain.NewLine(domain.Dialogue, "The boat is late again."),
		domain.NewLine(domain.Transition, "CUT TO:"),
		domain.NewLine(domain.Scene, "INT. BOAT - CONTINUOUS"),
	})
	b := domain.NewDocument("Garage", []domain.Line{
		domain.NewLine(domain.Scene, "INT. GARAGE - DAY"),
		domain.NewLine(domain.Action, "A radio hisses next to the boat trailer."),
	})
	b.Imported = true
	return []*domain.Document{a, b}
}

func TestIndexRebuildAndSearch(t *testing.T) {
	ix := openIndex(t, t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	docs := indexFixture()
	if err := ix.Rebuild(ctx, docs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	res, err := ix.Search(ctx, SearchQuery{Text: "boat"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("boat hits = %d, want 3: %+v", len(res), res)
	}
	for _, r := range res {
		if !strings.Contains(strings.ToLower(r.Snippet), "[boat]") {
			t.Fatalf("snippet lacks highlight: %q", r.Snippet)
		}
	}

	res, err = ix.Search(ctx, SearchQuery{Text: "boat", Types: []domain.LineType{domain.Dialogue}})
	if err != nil {
		t.Fatalf("Search typed: %v", err)
	}
	if len(res) != 1 || res[0].Type != domain.Dialogue || res[0].Title != "Harbor" || res[0].Position != 3 {
		t.Fatalf("typed search mismatch: %+v", res)
	}
	if res[0].LineID != docs[0].Lines[3].ID {
		t.Fatalf("line id mismatch")
	}

	// punctuation in free text must not break FTS syntax
	res, err = ix.Search(ctx, SearchQuery{Text: "CUT TO:"})
	if err != nil {
		t.Fatalf("Search punctuation: %v", err)
	}
	if len(res) != 1 || res[0].Type != domain.Transition {
		t.Fatalf("punctuation search mismatch: %+v", res)
	}

	res, err = ix.Search(ctx, SearchQuery{Text: "harb*", Raw: true})
	if err != nil {
		t.Fatalf("Search raw: %v", err)
	}
	if len(res) != 1 || res[0].Type != domain.Scene {
		t.Fatalf("raw prefix search mismatch: %+v", res)
	}
}

func TestIndexScenesAndUpdate(t *testing.T) {
	ix := openIndex(t, t.TempDir())
	ctx := context.Background()
	docs := indexFixture()
	if err := ix.Rebuild(ctx, docs); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	scenes, err := ix.Scenes(ctx, docs[0].ID)
	if err != nil {
		t.Fatalf("Scenes: %v", err)
	}
	if len(scenes) != 2 || scenes[0].Position != 0 || scenes[1].Position != 5 {
		t.Fatalf("scenes mismatch: %+v", scenes)
	}

	docs[0].Lines = docs[0].Lines[:1]
	if err := ix.Update(ctx, docs[0]); err != nil {
		t.Fatalf("Update: %v", err)
	}
	res, err := ix.Search(ctx, SearchQuery{Text: "late"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("stale lines still indexed: %+v", res)
	}

	if err := ix.Remove(ctx, docs[1].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	all, err := ix.Search(ctx, SearchQuery{})
	if err != nil {
		t.Fatalf("Search all: %v", err)
	}
	if len(all) != 1 || all[0].DocID != docs[0].ID {
		t.Fatalf("after remove: %+v", all)
	}
}

func TestIndexMigratedToCurrentSchema(t *testing.T) {
	dir := t.TempDir()
	ix := openIndex(t, dir)
	v, err := ix.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("schema = %d, want %d", v, schemaVersion)
	}
}

func TestOpenIndexRecreatesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(IndexPath(dir), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	ix := openIndex(t, dir)
	if err := ix.Rebuild(context.Background(), indexFixture()); err != nil {
		t.Fatalf("Rebuild on recreated index: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if len(entries) == 0 {
		t.Fatalf("expected backup of corrupt index")
	}
}

func TestQuoteTerms(t *testing.T) {
	if got := quoteTerms(`say "hi"  now`); got != `"say" """hi""" "now"` {
		t.Fatalf("quoteTerms = %s", got)
	}
	if placeholders(3) != "?,?,?" || placeholders(0) != "" {
		t.Fatalf("placeholders mismatch")
	}
}
