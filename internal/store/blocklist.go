// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// BlocklistEntry records a link or article that failed, or was rejected by
// the user, and must not be re-offered by search or aggregation.
// Uniqueness is on download_link when present, else web_link
// (enforced by the two conditional unique indexes in the schema).
type BlocklistEntry struct {
	ID           int64
	WebLink      string
	WebTitle     string
	WebSubTitle  string
	DownloadLink string
	Source       string
	VolumeID     sql.NullInt64
	IssueID      sql.NullInt64
	Reason       domain.BlocklistReason
	AddedAt      time.Time
}

// AddToBlocklist inserts an entry, silently doing nothing if it's already present
// (the unique indexes make this idempotent under INSERT OR IGNORE).
func (s *Store) AddToBlocklist(ctx context.Context, e *BlocklistEntry) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO blocklist (web_link, web_title, web_sub_title, download_link,
				source, volume_id, issue_id, reason, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.WebLink, e.WebTitle, e.WebSubTitle, e.DownloadLink, e.Source, e.VolumeID, e.IssueID,
			string(e.Reason), e.AddedAt.Unix())
		return err
	})
}

// ContainsLink reports whether downloadLink (if set) or else webLink is
// already blocklisted — the check the aggregator's download-group filter and
// the search-result match filter both consult before offering a link.
func (s *Store) ContainsLink(ctx context.Context, downloadLink, webLink string) (bool, error) {
	var key string
	var count int
	if downloadLink != "" {
		key = downloadLink
		err := s.conn.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM blocklist WHERE download_link = ?`, key).Scan(&count)
		if err != nil {
			return false, errors.Wrap(err, "check blocklist by download_link")
		}
		return count > 0, nil
	}
	key = webLink
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM blocklist WHERE download_link = '' AND web_link = ?`, key).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "check blocklist by web_link")
	}
	return count > 0, nil
}

func (s *Store) RemoveFromBlocklist(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM blocklist WHERE id = ?`, id)
		return err
	})
}

func (s *Store) ListBlocklist(ctx context.Context) ([]*BlocklistEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, web_link, web_title, web_sub_title, download_link, source, volume_id, issue_id,
			reason, added_at
		FROM blocklist ORDER BY added_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list blocklist")
	}
	defer rows.Close()

	var out []*BlocklistEntry
	for rows.Next() {
		e := &BlocklistEntry{}
		var reason string
		var addedAt int64
		if err := rows.Scan(&e.ID, &e.WebLink, &e.WebTitle, &e.WebSubTitle, &e.DownloadLink,
			&e.Source, &e.VolumeID, &e.IssueID, &reason, &addedAt); err != nil {
			return nil, err
		}
		e.Reason = domain.BlocklistReason(reason)
		e.AddedAt = time.Unix(addedAt, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
