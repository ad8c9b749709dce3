/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the line-level model of a screenplay: the closed set of
// element kinds, their fixed presentation attributes and per-line formatting.

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LineType is the semantic role of one screenplay line.
type LineType int

const (
	Scene LineType = iota
	Action
	Character
	Parenthesis
	Dialogue
	Transition
	Shot
	Text
	NewAct
	EndAct
	DualDialogue
)

var lineTypeNames = [...]string{
	Scene:        "Scene",
	Action:       "Action",
	Character:    "Character",
	Parenthesis:  "Parenthesis",
	Dialogue:     "Dialogue",
	Transition:   "Transition",
	Shot:         "Shot",
	Text:         "Text",
	NewAct:       "New Act",
	EndAct:       "End Act",
	DualDialogue: "Dual Dialogue",
}

// defaultNext is the type offered for a line appended after the keyed type.
var defaultNext = [...]LineType{
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

// AllLineTypes returns every LineType in declaration order.
func AllLineTypes() []LineType {
	out := make([]LineType, 0, len(lineTypeNames))
	for i := range lineTypeNames {
		out = append(out, LineType(i))
	}
	return out
}

// Valid reports whether t is one of the declared variants.
func (t LineType) Valid() bool { return t >= Scene && t <= DualDialogue }

func (t LineType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("LineType(%d)", int(t))
	}
	return lineTypeNames[t]
}

// ParseLineType resolves a display name (case-insensitive) to a LineType.
func ParseLineType(s string) (LineType, error) {
	s = strings.TrimSpace(s)
	for i, n := range lineTypeNames {
		if strings.EqualFold(n, s) {
			return LineType(i), nil
		}
	}
	return Action, fmt.Errorf("unknown line type %q", s)
}

// MarshalText encodes the type by its display name so persisted libraries stay readable.
func (t LineType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid line type %d", int(t))
	}
	return []byte(lineTypeNames[t]), nil
}

func (t *LineType) UnmarshalText(b []byte) error {
	v, err := ParseLineType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Next returns the type suggested for a line appended after a line of type t.
func (t LineType) Next() LineType {
	if !t.Valid() {
		return Action
	}
	return defaultNext[t]
}

// Uppercase reports whether rendered text of this type is forced to uppercase.
func (t LineType) Uppercase() bool {
	switch t {
	case Scene, Character, Transition, Shot, NewAct, EndAct:
		return true
	}
	return false
}

// Display applies the presentation transform for t. Stored text is never changed.
func (t LineType) Display(text string) string {
	if t.Uppercase() {
		return strings.ToUpper(text)
	}
	return text
}

// Alignment is the horizontal alignment class of a line.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
)

// Layout describes where a line sits horizontally. Indent is in points and is
// applied on both sides of the text column.
type Layout struct {
	Align  Alignment
	Indent float64
}

// Layout returns the fixed alignment and indentation of t.
func (t LineType) Layout() Layout {
	switch t {
	case Character:
		return Layout{Align: AlignCenter, Indent: 60}
	case Parenthesis:
		return Layout{Align: AlignCenter, Indent: 80}
	case Dialogue, DualDialogue:
		return Layout{Align: AlignLeft, Indent: 40}
	default:
		return Layout{Align: AlignLeft}
	}
}

// TextStyle holds the per-line formatting flags. The zero value is plain text.
type TextStyle struct {
	Bold          bool `json:"bold,omitempty"`
	Italic        bool `json:"italic,omitempty"`
	Underline     bool `json:"underline,omitempty"`
	Strikethrough bool `json:"strikethrough,omitempty"`
}

// IsZero reports whether no flag is set.
func (s TextStyle) IsZero() bool { return s == TextStyle{} }

// Line is a single typed line. ID is assigned once and never changes; Text is
// stored in its original case.
type Line struct {
	ID    string    `json:"id"`
	Type  LineType  `json:"type"`
	Text  string    `json:"text"`
	Style TextStyle `json:"style"`
}

// NewLine returns a line with a freshly generated id.
func NewLine(t LineType, text string) Line {
	return Line{ID: uuid.NewString(), Type: t, Text: text}
}

// Display returns the line text as it should be rendered.
func (l Line) Display() string { return l.Type.Display(l.Text) }
