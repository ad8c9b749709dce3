/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"goscreenwriter/internal/domain"
	"goscreenwriter/internal/script"
)

const (
	wordMainNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	docxDocumentPart = "word/document.xml"

	// maxDocumentPart bounds how much of word/document.xml is read.
	maxDocumentPart = 64 << 20
)

// DOCXCodec reads and writes minimal WordprocessingML packages. Paragraph
// order and text are the only information carried; line types are
// reconstructed by the classifier on decode.
type DOCXCodec struct{}

func (DOCXCodec) Format() Format       { return DOCX }
func (DOCXCodec) Extensions() []string { return []string{".docx"} }

// Decode reads word/document.xml and classifies every non-empty paragraph.
func (c DOCXCodec) Decode(data []byte, title string) (*domain.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corruptErr(DOCX, "decode", fmt.Errorf("open archive: %w", err))
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, corruptErr(DOCX, "decode", fmt.Errorf("missing %s", docxDocumentPart))
	}
	rc, err := part.Open()
	if err != nil {
		return nil, corruptErr(DOCX, "decode", fmt.Errorf("open %s: %w", docxDocumentPart, err))
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(io.LimitReader(rc, maxDocumentPart))
	if err != nil {
		return nil, corruptErr(DOCX, "decode", fmt.Errorf("read %s: %w", docxDocumentPart, err))
	}

	paras, err := docxParagraphs(body)
	if err != nil {
		return nil, parseErr(DOCX, "decode", err)
	}
	lines := make([]domain.Line, 0, len(paras))
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines = append(lines, domain.NewLine(script.Classify(p), p))
	}
	return imported(title, lines), nil
}

// docxParagraphs returns the concatenated w:t text of every top-level w:p.
// Paragraphs nested in other paragraphs (text boxes) fold into the outer one.
func docxParagraphs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader
	var (
		out     []string
		buf     strings.Builder
		pDepth  int
		inText  int
		sawRoot bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			if t.Name.Space != wordMainNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if pDepth == 0 {
					buf.Reset()
				}
				pDepth++
			case "t":
				if pDepth > 0 {
					inText++
				}
			case "tab":
				if pDepth > 0 {
					buf.WriteByte('\t')
				}
			case "br", "cr":
				if pDepth > 0 {
					buf.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordMainNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if pDepth > 0 {
					pDepth--
					if pDepth == 0 {
						out = append(out, buf.String())
					}
				}
			case "t":
				if inText > 0 {
					inText--
				}
			}
		case xml.CharData:
			if inText > 0 {
				buf.Write(t)
			}
		}
	}
	if !sawRoot {
		return nil, errors.New("empty document part")
	}
	return out, nil
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

const docxPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// Encode builds the four required package parts. Display-uppercased types are
// written uppercased.
func (c DOCXCodec) Encode(doc *domain.Document) ([]byte, error) {
	if err := requireDoc(DOCX, doc); err != nil {
		return nil, err
	}
	body := &bytes.Buffer{}
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	body.WriteString(`<w:document xmlns:w="` + wordMainNS + `"><w:body>`)
	for _, l := range doc.Lines {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(xmlEsc(l.Display()))
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`<w:sectPr/></w:body></w:document>`)

	out := &bytes.Buffer{}
	zw := zip.NewWriter(out)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxPackageRels)},
		{docxDocumentPart, body.Bytes()},
		{"word/_rels/document.xml.rels", []byte(docxDocumentRels)},
	}
	for _, p := range parts {
		if err := addZipFile(zw, p.name, p.data); err != nil {
			_ = zw.Close()
			return nil, newError(KindIOFailure, DOCX, "encode", fmt.Errorf("zip add %s: %w", p.name, err))
		}
	}
	if err := zw.Close(); err != nil {
		return nil, newError(KindIOFailure, DOCX, "encode", fmt.Errorf("close zip: %w", err))
	}
	return out.Bytes(), nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
