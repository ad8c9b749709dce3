/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoSwapsState(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10})
	t0 := time.Now()
	// states: a -> b -> c (current)
	m.Push(Snapshot{Key: "doc", Blob: []byte("a"), TS: t0})
	m.Push(Snapshot{Key: "doc", Blob: []byte("b"), TS: t0.Add(time.Second)})
	if _, keys, total := m.Stats(); keys != 1 || total != 2 {
		t.Fatalf("expected 1 key and 2 snapshots, got keys=%d total=%d", keys, total)
	}
	s, ok := m.Undo("doc", []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Undo("doc", []byte("b"))
	if !ok || string(s.Blob) != "a" {
		t.Fatalf("second undo expected 'a', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if _, ok := m.Undo("doc", []byte("a")); ok {
		t.Fatalf("undo past the oldest state should fail")
	}
	s, ok = m.Redo("doc", []byte("a"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("redo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Redo("doc", []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if !m.CanUndo("doc") {
		t.Fatalf("history lost after redo")
	}
}

func TestPushInvalidatesRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.Push(Snapshot{Key: "k", Blob: []byte("1"), TS: t0})
	if _, ok := m.Undo("k", []byte("2")); !ok {
		t.Fatalf("undo failed")
	}
	m.Push(Snapshot{Key: "k", Blob: []byte("1"), TS: t0.Add(time.Second)})
	if _, ok := m.Redo("k", []byte("3")); ok {
		t.Fatalf("redo must be cleared by a new change")
	}
}

func TestCoalesceKeepsOldestState(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "k", Blob: []byte("1"), TS: t0})
	m.Push(Snapshot{Key: "k", Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)}) // coalesce
	_, _, total := m.Stats()
	if total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("k", []byte("3"))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected state before the burst '1', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerKey: 2})
	for i := 0; i < 10; i++ {
		m.Push(Snapshot{Key: "k", Blob: []byte("xxxxx"), TS: time.Now().Add(time.Duration(i) * time.Millisecond)})
	}
	_, _, total := m.Stats()
	if total > 2 {
		t.Fatalf("expected MaxPerKey cap to limit to 2, got %d", total)
	}
}
