/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"goscreenwriter/internal/domain"
)

// SearchQuery describes a library search.
// Text is matched word by word against line text; set Raw to pass SQLite FTS5
// syntax (phrases, AND/OR/NOT, prefix*) through unchanged.
// Types and DocID are optional filters. Limit defaults to 100.
type SearchQuery struct {
	Text   string
	Raw    bool
	Types  []domain.LineType
	DocID  string
	Limit  int
	Offset int
}

// SearchResult is one matching line. Snippet marks the match with [ ] when
// a text query was given.
type SearchResult struct {
	DocID    string
	Title    string
	LineID   string
	Position int
	Type     domain.LineType
	Snippet  string
}

// Search runs q against the index. An empty Text lists lines matching the
// filters in document order.
func (ix *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	text := strings.TrimSpace(q.Text)
	if text != "" {
		sb.WriteString("SELECT l.doc_id, s.title, l.line_id, l.position, l.type, snippet(fts_lines, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_lines JOIN lines l ON fts_lines.rowid = l.id JOIN scripts s ON s.doc_id = l.doc_id\n")
		sb.WriteString("WHERE fts_lines MATCH ?\n")
		if !q.Raw {
			text = quoteTerms(text)
		}
		args = append(args, text)
	} else {
		sb.WriteString("SELECT l.doc_id, s.title, l.line_id, l.position, l.type, ''\n")
		sb.WriteString("FROM lines l JOIN scripts s ON s.doc_id = l.doc_id\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND l.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t.String())
		}
	}
	if id := strings.TrimSpace(q.DocID); id != "" {
		sb.WriteString(" AND l.doc_id = ?\n")
		args = append(args, id)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if text != "" {
		sb.WriteString("ORDER BY rank, s.title, l.position\n")
	} else {
		sb.WriteString("ORDER BY s.title, l.doc_id, l.position\n")
	}
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := ix.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var typ string
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Title, &r.LineID, &r.Position, &typ, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.Type, err = domain.ParseLineType(typ); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Scenes lists the scene headings of one document in order.
func (ix *Index) Scenes(ctx context.Context, docID string) ([]SearchResult, error) {
	return ix.Search(ctx, SearchQuery{DocID: docID, Types: []domain.LineType{domain.Scene}, Limit: 10000})
}

// quoteTerms turns free text into an FTS5 query that ANDs each word as a
// literal string, so punctuation such as "CUT TO:" cannot break the syntax.
func quoteTerms(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
