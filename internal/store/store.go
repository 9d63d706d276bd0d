// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package store is the sqlite-backed persistence layer: volumes, issues,
// files, downloads, blocklist entries, credentials, and root folders. It is
// a concrete storage choice for this module, not a schema specification for
// other implementations.
package store

import (
	"context"
	"database/sql"
	"embed"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a single sqlite connection. Writes are serialized through a
// mutex held by WithTx so the queue actor, the scanner, and the aggregator
// can all hold a *Store without tripping sqlite's single-writer limit or
// needing "database is locked" retry loops at every call site.
type Store struct {
	conn *sql.DB

	writeMu sync.Mutex
}

// Open creates (if needed) and migrates the sqlite database at path. Use
// ":memory:" for an ephemeral store, the pattern the store's own tests use.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	s := &Store{conn: conn}
	if err := s.applyPragmas(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			log.Warn().Err(err).Str("pragma", p).Msg("[STORE] pragma failed, continuing")
		}
	}
	return nil
}

func (s *Store) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if _, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}

	applied := map[string]bool{}
	rows, err := s.conn.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return errors.Wrap(err, "query applied migrations")
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, name := range names {
		if applied[name] {
			continue
		}
		sqlBytes, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", name)
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "apply migration %s", name)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, name); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Info().Str("migration", name).Msg("[STORE] applied migration")
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// WithTx runs fn inside a single serialized write transaction. All mutating
// repository methods go through this so two goroutines (the queue worker
// and the scanner, say) never interleave writes against sqlite.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

func intsToArgs(ints []int64) []any {
	args := make([]any, len(ints))
	for i, v := range ints {
		args[i] = v
	}
	return args
}

func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
