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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"goscreenwriter/internal/domain"
)

// fdxTypes is the wire name of every line type. Decoding compares case-insensitively.
var fdxTypes = map[domain.LineType]string{
	domain.Scene:        "Scene Heading",
	domain.Action:       "Action",
	domain.Character:    "Character",
	domain.Parenthesis:  "Parenthetical",
	domain.Dialogue:     "Dialogue",
	domain.Transition:   "Transition",
	domain.Shot:         "Shot",
	domain.Text:         "Text",
	domain.NewAct:       "Act",
	domain.EndAct:       "End of Act",
	domain.DualDialogue: "Dual Dialogue",
}

var fdxDecodeTypes = func() map[string]domain.LineType {
	m := make(map[string]domain.LineType, len(fdxTypes)+2)
	for t, n := range fdxTypes {
		m[strings.ToLower(n)] = t
	}
	// names written by older exporters
	m["new act"] = domain.NewAct
	m["end act"] = domain.EndAct
	return m
}()

func fdxLineType(attr string) domain.LineType {
	if t, ok := fdxDecodeTypes[strings.ToLower(strings.TrimSpace(attr))]; ok {
		return t
	}
	return domain.Action
}

// FDXCodec reads and writes Final Draft style XML. Only type and text are
// carried; text styles are not written.
type FDXCodec struct{}

func (FDXCodec) Format() Format       { return FDX }
func (FDXCodec) Extensions() []string { return []string{".fdx"} }

// fdxParagraph is an open Paragraph element.
type fdxParagraph struct {
	typ     domain.LineType
	text    strings.Builder // character data inside Text children
	raw     strings.Builder // all character data, used when there is no Text child
	hasText bool
}

// fdxAccumulator is the state threaded through the token loop.
type fdxAccumulator struct {
	open      []*fdxParagraph
	textDepth int
	titlePage int
	sawRoot   bool
	lines     []domain.Line
}

func (a *fdxAccumulator) top() *fdxParagraph {
	if len(a.open) == 0 {
		return nil
	}
	return a.open[len(a.open)-1]
}

func (a *fdxAccumulator) start(se xml.StartElement) {
	a.sawRoot = true
	switch se.Name.Local {
	case "TitlePage":
		a.titlePage++
	case "Paragraph":
		if a.titlePage > 0 {
			return
		}
		p := &fdxParagraph{typ: domain.Action}
		for _, at := range se.Attr {
			if at.Name.Local == "Type" {
				p.typ = fdxLineType(at.Value)
			}
		}
		a.open = append(a.open, p)
	case "Text":
		if p := a.top(); p != nil && a.titlePage == 0 {
			p.hasText = true
			a.textDepth++
		}
	}
}

func (a *fdxAccumulator) end(ee xml.EndElement) {
	switch ee.Name.Local {
	case "TitlePage":
		if a.titlePage > 0 {
			a.titlePage--
		}
	case "Paragraph":
		if a.titlePage > 0 || len(a.open) == 0 {
			return
		}
		p := a.top()
		a.open = a.open[:len(a.open)-1]
		s := p.raw.String()
		if p.hasText {
			s = p.text.String()
		}
		if s = strings.TrimSpace(s); s != "" {
			a.lines = append(a.lines, domain.NewLine(p.typ, s))
		}
	case "Text":
		if a.textDepth > 0 {
			a.textDepth--
		}
	}
}

func (a *fdxAccumulator) chars(cd xml.CharData) {
	p := a.top()
	if p == nil || a.titlePage > 0 {
		return
	}
	if a.textDepth > 0 {
		p.text.Write(cd)
	}
	p.raw.Write(cd)
}

// Decode parses the paragraphs of an FDX document. Unknown or missing
// paragraph types become action; empty paragraphs are dropped; paragraphs
// inside TitlePage are ignored.
func (c FDXCodec) Decode(data []byte, title string) (*domain.Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	acc := &fdxAccumulator{}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseErr(FDX, "decode", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			acc.start(t)
		case xml.EndElement:
			acc.end(t)
		case xml.CharData:
			acc.chars(t)
		}
	}
	if !acc.sawRoot {
		return nil, parseErr(FDX, "decode", errors.New("no root element"))
	}
	return imported(title, acc.lines), nil
}

// Encode writes one Paragraph per line.
func (c FDXCodec) Encode(doc *domain.Document) ([]byte, error) {
	if err := requireDoc(FDX, doc); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(buf, format, args...)
	}
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"no\" ?>\n")
	wf("<FinalDraft DocumentType=\"Script\" Template=\"No\" Version=\"1\">\n")
	wf("  <Content>\n")
	for _, l := range doc.Lines {
		name, ok := fdxTypes[l.Type]
		if !ok {
			name = fdxTypes[domain.Action]
		}
		wf("    <Paragraph Type=\"%s\">\n", xmlEsc(name))
		wf("      <Text>%s</Text>\n", xmlEsc(l.Text))
		wf("    </Paragraph>\n")
	}
	wf("  </Content>\n")
	wf("</FinalDraft>\n")
	if werr != nil {
		return nil, newError(KindIOFailure, FDX, "encode", werr)
	}
	return buf.Bytes(), nil
}

// charsetReader lets the XML decoder read documents declaring a non UTF-8
// encoding such as windows-1252 or ISO-8859-1.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: unsupported", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// xmlEsc escapes text for element content and attribute values. Characters
// that XML 1.0 forbids are dropped.
func xmlEsc(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			if !xmlChar(r) {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func xmlChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}
