/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"testing"

	"goscreenwriter/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   string
		want domain.LineType
	}{
		{"INT. HOUSE - DAY", domain.Scene},
		{"EXT. ROOFTOP - NIGHT", domain.Scene},
		{"INT/EXT. CAR - MOVING", domain.Scene},
		{"I/E. PORCH", domain.Scene},
		{"  INT. HOUSE - DAY  ", domain.Scene},
		{"JOHN", domain.Character},
		{"(smiling)", domain.Parenthesis},
		{"CUT TO:", domain.Character},
		{"Smash cut to the beach:", domain.Transition},
		{"SMASH CUT TO THE BEACH:", domain.Transition},
		{"", domain.Action},
		{"   ", domain.Action},
		{"ACT II", domain.NewAct},
		{"END ACT II", domain.EndAct},
		{"Hello.", domain.Action},
		{"A VERY LONG ALL CAPS LINE OF ACTION", domain.Action},
		{"ÉLODIE", domain.Character},
	}
	for _, c := range cases {
		if got := Classify(c.in); got != c.want {
			t.Fatalf("Classify(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

// "CUT TO:" is seven characters and all caps, so the character rule wins over
// the transition rule.
func TestClassifyCharacterBeforeTransition(t *testing.T) {
	if got := Classify("CUT TO:"); got != domain.Character {
		t.Fatalf("got %s", got)
	}
}

func TestParseDropsBlankLinesAndKeepsOrder(t *testing.T) {
	s, errs := Parse("INT. HOUSE - DAY\r\n\r\nJOHN\rHello.\n")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	want := []domain.LineType{domain.Scene, domain.Character, domain.Action}
	if len(s.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %+v", len(want), len(s.Lines), s.Lines)
	}
	for i, w := range want {
		if s.Lines[i].Type != w {
			t.Fatalf("line %d type = %s, want %s", i, s.Lines[i].Type, w)
		}
	}
	if s.Lines[0].LineNo != 1 || s.Lines[1].LineNo != 3 {
		t.Fatalf("unexpected line numbers: %+v", s.Lines)
	}
}

func TestParsePlainTypesEverythingAsText(t *testing.T) {
	s, _ := ParsePlain("INT. HOUSE - DAY\nJOHN\n\nHello.")
	if len(s.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(s.Lines))
	}
	for _, l := range s.Lines {
		if l.Type != domain.Text {
			t.Fatalf("expected text type, got %s", l.Type)
		}
	}
}

func TestParseNormalizesToNFC(t *testing.T) {
	// "e" + combining acute accent
	s, _ := Parse("Cafe\u0301 scene")
	if len(s.Lines) != 1 || s.Lines[0].Text != "Caf\u00e9 scene" {
		t.Fatalf("text not NFC normalized: %+v", s.Lines)
	}
}

func TestScriptDocument(t *testing.T) {
	s, _ := Parse("INT. HOUSE - DAY\nJOHN")
	d := s.Document("House")
	if d.Title != "House" || len(d.Lines) != 2 || d.Lines[0].ID == "" {
		t.Fatalf("unexpected document: %+v", d)
	}
}
