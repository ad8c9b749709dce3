/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend pushes the screenplay library to a PostgreSQL database as an
// off-device backup. Documents are stored as JSONB next to a generated
// tsvector so the remote copy stays searchable.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"goscreenwriter/internal/domain"
	applog "goscreenwriter/internal/log"
	"goscreenwriter/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoDSN is returned by Open when no connection string is configured.
var ErrNoDSN = errors.New("postgres backup is not configured")

// Backup is a connection to the remote screenplay store.
type Backup struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to dsn, pings the server and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Backup, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoDSN
	}
	l := applog.WithComponent("backend")
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Backup{db: db, log: l}, nil
}

// Close releases the connection pool.
func (b *Backup) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Push upserts docs in one transaction and returns how many rows were written.
// A row is only replaced when the incoming document is at least as new.
func (b *Backup) Push(ctx context.Context, docs []*domain.Document) (int, error) {
	l := applog.WithOperation(b.log, "push").With(slog.Int("documents", len(docs)))
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	// dialect=PostgreSQL
	const upsert = `INSERT INTO screenplays (id, title, author, imported, updated_at, line_count, body, plain_text, pushed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			imported = EXCLUDED.imported,
			updated_at = EXCLUDED.updated_at,
			line_count = EXCLUDED.line_count,
			body = EXCLUDED.body,
			plain_text = EXCLUDED.plain_text,
			pushed_at = now()
		WHERE screenplays.updated_at <= EXCLUDED.updated_at`
	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	written := 0
	for _, d := range docs {
		if d == nil {
			continue
		}
		body, err := json.Marshal(d)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("marshal %s: %w", d.ID, err)
		}
		res, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Author, d.Imported, d.UpdatedAt.UTC(), len(d.Lines), string(body), plainText(d))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert %s: %w", d.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}
	// dialect=PostgreSQL
	if _, err := tx.ExecContext(ctx, `INSERT INTO push_log (documents, app) VALUES ($1, $2)`, written, version.String()); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("record push: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.Info("pushed library", slog.Int("written", written))
	return written, nil
}

// Pull returns every stored document, newest first.
func (b *Backup) Pull(ctx context.Context) ([]*domain.Document, error) {
	// dialect=PostgreSQL
	rows, err := b.db.QueryContext(ctx, `SELECT body FROM screenplays ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("select screenplays: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []*domain.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var d domain.Document
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode screenplay: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Hit is one remote search match.
type Hit struct {
	ID      string
	Title   string
	Snippet string
}

// Search runs a plain full-text query over the stored screenplays.
func (b *Backup) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	// dialect=PostgreSQL
	const q = `SELECT id, title,
			COALESCE(ts_headline('simple', plain_text, plainto_tsquery('simple', $1), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '')
		FROM screenplays
		WHERE search_vector @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(search_vector, plainto_tsquery('simple', $1)) DESC, id
		LIMIT $2`
	rows, err := b.db.QueryContext(ctx, q, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// plainText joins the display text of every line, one per row.
func plainText(d *domain.Document) string {
	var sb strings.Builder
	for i, ln := range d.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(ln.Display())
	}
	return sb.String()
}

// applyMigrations applies embedded SQL migrations in filename order.
func applyMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		v, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, v, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
