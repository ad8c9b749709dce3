/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"goscreenwriter/internal/domain"
	"goscreenwriter/internal/script"
)

// PlainTextCodec is the fallback for files no other codec claims. By default
// every non-empty line becomes a text line; with Classify set the heuristic
// classifier assigns types instead.
type PlainTextCodec struct {
	Classify bool
}

func (PlainTextCodec) Format() Format       { return Text }
func (PlainTextCodec) Extensions() []string { return []string{".txt", ".text"} }

func (c PlainTextCodec) Decode(data []byte, title string) (*domain.Document, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, parseErr(Text, "decode", errors.New("input is not valid UTF-8 text"))
	}
	parse := script.ParsePlain
	if c.Classify {
		parse = script.Parse
	}
	s, errs := parse(string(data))
	if len(errs) > 0 {
		return nil, parseErr(Text, "decode", errs[0])
	}
	d := s.Document(title)
	d.Imported = true
	return d, nil
}

// Encode writes the display text of each line, one per line.
func (c PlainTextCodec) Encode(doc *domain.Document) ([]byte, error) {
	if err := requireDoc(Text, doc); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	for _, l := range doc.Lines {
		buf.WriteString(l.Display())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
