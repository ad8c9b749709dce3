package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLineTypeJSONUsesDisplayName(t *testing.T) {
	l := Line{ID: "l1", Type: DualDialogue, Text: "Both at once"}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"type":"Dual Dialogue"`) {
		t.Fatalf("unexpected json: %s", b)
	}
	var got Line
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != l {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, l)
	}
}

func TestLineTypeUnmarshalRejectsUnknown(t *testing.T) {
	var l Line
	if err := json.Unmarshal([]byte(`{"id":"x","type":"Montage","text":"a"}`), &l); err == nil {
		t.Fatalf("expected error for unknown line type")
	}
}

func TestLineTypeNextTable(t *testing.T) {
	cases := map[LineType]LineType{
		Scene:        Action,
		Action:       Character,
		Character:    Dialogue,
		Parenthesis:  Dialogue,
		Dialogue:     Character,
		Transition:   Scene,
		Shot:         Action,
		Text:         Text,
		NewAct:       Scene,
		EndAct:       Scene,
		DualDialogue: Dialogue,
	}
	if len(cases) != len(AllLineTypes()) {
		t.Fatalf("table does not cover all line types")
	}
	for from, want := range cases {
		if got := from.Next(); got != want {
			t.Fatalf("%s.Next() = %s, want %s", from, got, want)
		}
	}
}

func TestUppercaseIsPresentationOnly(t *testing.T) {
	l := NewLine(Character, "Bill")
	if l.Text != "Bill" {
		t.Fatalf("stored text changed: %q", l.Text)
	}
	if l.Display() != "BILL" {
		t.Fatalf("display = %q", l.Display())
	}
	if got := NewLine(Dialogue, "Hello").Display(); got != "Hello" {
		t.Fatalf("dialogue display = %q", got)
	}
}

func TestLayout(t *testing.T) {
	if lo := Character.Layout(); lo.Align != AlignCenter || lo.Indent != 60 {
		t.Fatalf("character layout: %+v", lo)
	}
	if lo := Parenthesis.Layout(); lo.Align != AlignCenter || lo.Indent != 80 {
		t.Fatalf("parenthesis layout: %+v", lo)
	}
	if lo := Dialogue.Layout(); lo.Align != AlignLeft || lo.Indent != 40 {
		t.Fatalf("dialogue layout: %+v", lo)
	}
	if lo := Scene.Layout(); lo.Indent != 0 {
		t.Fatalf("scene layout: %+v", lo)
	}
}

func TestNewLineIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		l := NewLine(Action, "x")
		if l.ID == "" || seen[l.ID] {
			t.Fatalf("duplicate or empty id %q", l.ID)
		}
		seen[l.ID] = true
	}
}
