// internal/store/sqlite.go
//
// SQLite implementation of Store (and Users, see users.go).
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations from sql/*.sql (idempotent, recorded in _migrations).
//   - Score upserts, round history and owner claiming.

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the handle for health checks.
func (s *SQLite) DB() *sql.DB { return s.db }

// openDB ensures the parent directory exists, then opens with busy timeout and WAL.
func openDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies embedded migrations in lexical order, each in its own
// transaction, skipping files already listed in _migrations.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := fs.WalkDir(migrationsFS, "sql", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := migrationsFS.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

/* ------------------------------- scores --------------------------------- */

func (s *SQLite) Score(ctx context.Context, owner, name string) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM scores WHERE owner=? AND name=?`, owner, name,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load score %s/%s: %w", owner, name, err)
	}
	return v, nil
}

func (s *SQLite) SaveScore(ctx context.Context, owner, name string, value int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO scores (owner, name, value, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(owner, name) DO UPDATE SET
            value=MAX(scores.value, excluded.value),
            updated_at=excluded.updated_at`,
		owner, name, value, now(),
	)
	if err != nil {
		return fmt.Errorf("save score %s/%s: %w", owner, name, err)
	}
	return nil
}

/* ------------------------------- rounds --------------------------------- */

func (s *SQLite) RecordRound(ctx context.Context, r RoundRecord) error {
	at := r.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO rounds (id, owner, length, taps, won, score, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Owner, r.Length, r.Taps, r.Won, r.Score, at.UTC().Format(timeLayout),
	)
	return err
}

// RecentRounds returns up to limit rounds, newest first. Default limit is 50.
func (s *SQLite) RecentRounds(ctx context.Context, owner string, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, owner, length, taps, won, score, finished_at
        FROM rounds
        WHERE owner=?
        ORDER BY finished_at DESC, rowid DESC
        LIMIT ?`, owner, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RoundRecord, 0, limit)
	for rows.Next() {
		var r RoundRecord
		var at string
		if err := rows.Scan(&r.ID, &r.Owner, &r.Length, &r.Taps, &r.Won, &r.Score, &at); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(timeLayout, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context, owner string) (Stats, error) {
	var st Stats
	var wins sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), SUM(won) FROM rounds WHERE owner=?`, owner,
	).Scan(&st.Rounds, &wins); err != nil {
		return st, err
	}
	st.Wins = int(wins.Int64)
	st.Losses = st.Rounds - st.Wins

	best, err := s.Score(ctx, owner, BestScoreKey)
	if err != nil {
		return st, err
	}
	st.Best = best
	return st, nil
}

// ClaimOwner transfers rounds and merges scores (max wins) inside one transaction.
func (s *SQLite) ClaimOwner(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE rounds SET owner=? WHERE owner=?`, to, from); err != nil {
		return fmt.Errorf("claim rounds: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO scores (owner, name, value, updated_at)
        SELECT ?, name, value, ? FROM scores WHERE owner=?
        ON CONFLICT(owner, name) DO UPDATE SET
            value=MAX(scores.value, excluded.value),
            updated_at=excluded.updated_at`,
		to, now(), from,
	); err != nil {
		return fmt.Errorf("merge scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scores WHERE owner=?`, from); err != nil {
		return fmt.Errorf("drop claimed scores: %w", err)
	}
	return tx.Commit()
}

func now() string { return time.Now().UTC().Format(timeLayout) }
