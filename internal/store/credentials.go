// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Credential holds the login/API-key material for one external service
// (Mega, PixelDrain, qBittorrent, SABnzbd, ...), keyed by source name.
// Encryption-at-rest is out of scope; domain.RedactedStr is the placeholder
// that stands in for these whenever they are serialized back out.
type Credential struct {
	ID       int64
	Source   string
	Username string
	Password string
	APIKey   string
}

func (s *Store) UpsertCredential(ctx context.Context, c *Credential) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (source, username, password, api_key) VALUES (?, ?, ?, ?)
			ON CONFLICT(source) DO UPDATE SET username = excluded.username,
				password = excluded.password, api_key = excluded.api_key`,
			c.Source, c.Username, c.Password, c.APIKey)
		return err
	})
}

func (s *Store) GetCredential(ctx context.Context, source string) (*Credential, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, source, username, password, api_key FROM credentials WHERE source = ?`, source)
	c := &Credential{}
	if err := row.Scan(&c.ID, &c.Source, &c.Username, &c.Password, &c.APIKey); err != nil {
		if errNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get credential")
	}
	return c, nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]*Credential, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, source, username, password, api_key FROM credentials ORDER BY source`)
	if err != nil {
		return nil, errors.Wrap(err, "list credentials")
	}
	defer rows.Close()

	var out []*Credential
	for rows.Next() {
		c := &Credential{}
		if err := rows.Scan(&c.ID, &c.Source, &c.Username, &c.Password, &c.APIKey); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCredential(ctx context.Context, source string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE source = ?`, source)
		return err
	})
}
