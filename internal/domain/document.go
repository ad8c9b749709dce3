/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LinesPerPage is the number of lines assumed to fit on one printed page when
// estimating page count.
const LinesPerPage = 55

// TemplateSceneHeading is the single line of a document created from the template.
const TemplateSceneHeading = "INT. SET - DAY"

// ErrLineNotFound is returned by mutations addressing an unknown line id.
var ErrLineNotFound = errors.New("line not found")

// now is swapped in tests to get deterministic timestamps.
var now = func() time.Time { return time.Now().UTC() }

// Document is a screenplay: metadata plus the ordered lines in narrative order.
// Imported marks documents that came from an external file rather than being
// authored in the app.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Imported  bool      `json:"imported"`
	Lines     []Line    `json:"lines"`
}

// NewDocument creates a document with a fresh id. Lines without an id get one.
func NewDocument(title string, lines []Line) *Document {
	d := &Document{ID: uuid.NewString(), Title: title, UpdatedAt: now(), Lines: make([]Line, 0, len(lines))}
	for _, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		d.Lines = append(d.Lines, l)
	}
	return d
}

// NewFromTemplate creates a document holding a single scene heading.
func NewFromTemplate(title string) *Document {
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	return NewDocument(title, []Line{NewLine(Scene, TemplateSceneHeading)})
}

// PageEstimate derives the page count from the number of lines.
func (d *Document) PageEstimate() int {
	return PageEstimate(len(d.Lines))
}

// PageEstimate returns max(1, lines/LinesPerPage + 1).
func PageEstimate(lines int) int {
	p := lines/LinesPerPage + 1
	if p < 1 {
		return 1
	}
	return p
}

func (d *Document) touch() { d.UpdatedAt = now() }

// SetTitle renames the document.
func (d *Document) SetTitle(title string) {
	d.Title = title
	d.touch()
}

// SetAuthor sets or clears (empty string) the author.
func (d *Document) SetAuthor(author string) {
	d.Author = strings.TrimSpace(author)
	d.touch()
}

// IndexOf returns the position of the line with the given id, or -1.
func (d *Document) IndexOf(id string) int {
	for i := range d.Lines {
		if d.Lines[i].ID == id {
			return i
		}
	}
	return -1
}

// Line returns a copy of the line with the given id.
func (d *Document) Line(id string) (Line, bool) {
	if i := d.IndexOf(id); i >= 0 {
		return d.Lines[i], true
	}
	return Line{}, false
}

// AppendLine adds a new line at the end and returns it.
func (d *Document) AppendLine(t LineType, text string) Line {
	l := NewLine(t, text)
	d.Lines = append(d.Lines, l)
	d.touch()
	return l
}

// AppendNext appends a line whose type follows the last line's type.
// An empty document continues with action.
func (d *Document) AppendNext(text string) Line {
	t := Action
	if n := len(d.Lines); n > 0 {
		t = d.Lines[n-1].Type.Next()
	}
	return d.AppendLine(t, text)
}

// InsertAfter inserts a new line directly after the line with the given id.
// An empty id inserts at the top.
func (d *Document) InsertAfter(id string, t LineType, text string) (Line, error) {
	pos := 0
	if id != "" {
		i := d.IndexOf(id)
		if i < 0 {
			return Line{}, fmt.Errorf("insert after %s: %w", id, ErrLineNotFound)
		}
		pos = i + 1
	}
	l := NewLine(t, text)
	d.Lines = append(d.Lines, Line{})
	copy(d.Lines[pos+1:], d.Lines[pos:])
	d.Lines[pos] = l
	d.touch()
	return l, nil
}

// UpdateLine applies fn to the line in place. The id is restored afterwards so
// callers cannot change a line's identity.
func (d *Document) UpdateLine(id string, fn func(*Line)) error {
	i := d.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, ErrLineNotFound)
	}
	fn(&d.Lines[i])
	d.Lines[i].ID = id
	d.touch()
	return nil
}

// RemoveLine deletes the line with the given id.
func (d *Document) RemoveLine(id string) error {
	i := d.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("remove %s: %w", id, ErrLineNotFound)
	}
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	d.touch()
	return nil
}

// MoveLine moves the line with the given id to index to, clamped to the valid range.
func (d *Document) MoveLine(id string, to int) error {
	i := d.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("move %s: %w", id, ErrLineNotFound)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(d.Lines) {
		to = len(d.Lines) - 1
	}
	if to == i {
		return nil
	}
	l := d.Lines[i]
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	d.Lines = append(d.Lines, Line{})
	copy(d.Lines[to+1:], d.Lines[to:])
	d.Lines[to] = l
	d.touch()
	return nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Lines = append([]Line(nil), d.Lines...)
	return &c
}
