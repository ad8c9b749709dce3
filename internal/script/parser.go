/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"goscreenwriter/internal/domain"
)

// maxCharacterCue is the longest all-caps line still taken as a character cue.
const maxCharacterCue = 18

var scenePrefixes = []string{"INT.", "EXT.", "INT/", "I/E"}

// Classify infers the line type of unstructured text. It is total: every
// input maps to some type. Rules are checked in order on the trimmed text:
//   - empty: action
//   - INT. / EXT. / INT/ / I/E prefix: scene
//   - "ACT " prefix: new act
//   - "END ACT" prefix: end act
//   - wrapped in parentheses: parenthesis
//   - already uppercase and at most 18 characters: character
//   - trailing colon: transition
//   - anything else: action
//
// A short all-caps line ending in a colon is therefore a character cue, not a transition.
func Classify(raw string) domain.LineType {
	s := strings.TrimSpace(raw)
	if s == "" {
		return domain.Action
	}
	for _, p := range scenePrefixes {
		if strings.HasPrefix(s, p) {
			return domain.Scene
		}
	}
	switch {
	case strings.HasPrefix(s, "ACT "):
		return domain.NewAct
	case strings.HasPrefix(s, "END ACT"):
		return domain.EndAct
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		return domain.Parenthesis
	case s == strings.ToUpper(s) && utf8.RuneCountInString(s) <= maxCharacterCue:
		return domain.Character
	case strings.HasSuffix(s, ":"):
		return domain.Transition
	}
	return domain.Action
}

// Parse splits text into lines and classifies each non-empty one.
// CRLF and CR line endings are accepted. Blank lines are dropped.
func Parse(input string) (Script, []Error) {
	return scan(input, Classify)
}

// ParsePlain is like Parse but types every line as plain text.
func ParsePlain(input string) (Script, []Error) {
	return scan(input, func(string) domain.LineType { return domain.Text })
}

func scan(input string, typeOf func(string) domain.LineType) (Script, []Error) {
	s := Script{Lines: []Line{}}
	var errs []Error

	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")
	input = norm.NFC.String(input)

	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		trim := strings.TrimSpace(scanner.Text())
		if trim == "" {
			continue
		}
		s.Lines = append(s.Lines, Line{Type: typeOf(trim), Text: trim, LineNo: lineNo})
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo + 1, Column: 1, Message: err.Error()})
	}
	return s, errs
}
