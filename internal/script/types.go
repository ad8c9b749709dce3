/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "goscreenwriter/internal/domain"

// Script is the result of parsing unstructured text: one typed line per
// non-empty input line, in input order.

type Script struct {
	Lines []Line
}

// Line is a parsed line. Text is trimmed and NFC-normalized; LineNo is the
// 1-based line number in the source text.

type Line struct {
	Type   domain.LineType
	Text   string
	LineNo int
}

// Error represents a parse error with position context.

type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return e.Message }

// Document converts the parsed lines into a fresh document.
func (s Script) Document(title string) *domain.Document {
	lines := make([]domain.Line, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, domain.NewLine(l.Type, l.Text))
	}
	return domain.NewDocument(title, lines)
}
