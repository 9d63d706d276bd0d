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

// Download is one entry in the persisted download queue,
// surviving a restart so in-flight and queued transfers resume.
type Download struct {
	ID           int64
	VolumeID     int64
	IssueID      sql.NullInt64
	CoveredStart sql.NullFloat64
	CoveredEnd   sql.NullFloat64
	SourceKind   domain.SourceKind
	SourceName   string
	WebLink      string
	WebTitle     string
	WebSubTitle  string
	DownloadLink string
	PureLink     string
	DownloadType domain.DownloadType
	Title        string
	TargetFolder string
	Size         int64
	State        domain.DownloadState
	Progress     float64
	Speed        int64
	ExternalID   string
	EnqueuedAt   time.Time

	Files []string
}

// CoveredIssues reconstructs the Number the queue entry was enqueued for.
func (d *Download) CoveredIssues() domain.Number {
	if !d.CoveredStart.Valid {
		return domain.NoNumber
	}
	if !d.CoveredEnd.Valid || d.CoveredEnd.Float64 == d.CoveredStart.Float64 {
		return domain.Single(d.CoveredStart.Float64)
	}
	return domain.Span(d.CoveredStart.Float64, d.CoveredEnd.Float64)
}

// Enqueue inserts a new queue row in the "queued" state.
func (s *Store) Enqueue(ctx context.Context, d *Download) (int64, error) {
	var id int64
	covered := d.CoveredIssues()
	var start, end sql.NullFloat64
	if covered.IsSet() {
		lo, hi := covered.Bounds()
		start = sql.NullFloat64{Float64: lo, Valid: true}
		end = sql.NullFloat64{Float64: hi, Valid: true}
	}

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO download_queue (volume_id, issue_id, covered_start, covered_end,
				source_kind, source_name, web_link, web_title, web_sub_title, download_link,
				pure_link, download_type, title, target_folder, size, state, progress, speed,
				external_id, enqueued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.VolumeID, d.IssueID, start, end, string(d.SourceKind), d.SourceName, d.WebLink,
			d.WebTitle, d.WebSubTitle, d.DownloadLink, d.PureLink, string(d.DownloadType),
			d.Title, d.TargetFolder, d.Size, string(domain.DownloadStateQueued), 0, 0,
			d.ExternalID, d.EnqueuedAt.Unix())
		if err != nil {
			return errors.Wrap(err, "insert download")
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, path := range d.Files {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO download_queue_files (download_id, path) VALUES (?, ?)`, id, path); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// SetState transitions a queue entry's state in the download state machine.
func (s *Store) SetState(ctx context.Context, id int64, state domain.DownloadState) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE download_queue SET state = ? WHERE id = ?`, string(state), id)
		return err
	})
}

// SetProgress records progress (0..1) and speed (bytes/sec) for an
// in-flight download, polled by the external client adapters.
func (s *Store) SetProgress(ctx context.Context, id int64, progress float64, speed int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE download_queue SET progress = ?, speed = ? WHERE id = ?`, progress, speed, id)
		return err
	})
}

// SetExternalID records the external client's handle for a download (the
// qBittorrent/SABnzbd job id, or the torrent info-hash).
func (s *Store) SetExternalID(ctx context.Context, id int64, externalID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE download_queue SET external_id = ? WHERE id = ?`, externalID, id)
		return err
	})
}

// SetFiles replaces the file list recorded against a queue entry. For a
// direct/Mega download this is the set of paths the transfer wrote; for a
// torrent/usenet download it is the single content path the external
// client reports once it knows one.
func (s *Store) SetFiles(ctx context.Context, id int64, files []string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM download_queue_files WHERE download_id = ?`, id); err != nil {
			return err
		}
		for _, path := range files {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO download_queue_files (download_id, path) VALUES (?, ?)`, id, path); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove deletes a queue entry outright, used once it's moved to history.
func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM download_queue WHERE id = ?`, id)
		return err
	})
}

// ListQueue returns every queue entry, ordered by enqueue time, the order
// the single-actor worker processes them in.
func (s *Store) ListQueue(ctx context.Context) ([]*Download, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, volume_id, issue_id, covered_start, covered_end, source_kind, source_name,
			web_link, web_title, web_sub_title, download_link, pure_link, download_type, title,
			target_folder, size, state, progress, speed, external_id, enqueued_at
		FROM download_queue ORDER BY enqueued_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list queue")
	}
	defer rows.Close()

	var out []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, d := range out {
		if err := s.loadDownloadFiles(ctx, d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadDownloadFiles(ctx context.Context, d *Download) error {
	rows, err := s.conn.QueryContext(ctx, `SELECT path FROM download_queue_files WHERE download_id = ?`, d.ID)
	if err != nil {
		return errors.Wrap(err, "list download files")
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		d.Files = append(d.Files, p)
	}
	return rows.Err()
}

// RecordHistory appends a terminal queue entry to download_history,
// keeping the live queue separate from its retained history.
func (s *Store) RecordHistory(ctx context.Context, d *Download, finishedAt time.Time) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO download_history (volume_id, issue_id, web_title, web_link, download_link,
				source_kind, state, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.VolumeID, d.IssueID, d.WebTitle, d.WebLink, d.DownloadLink, string(d.SourceKind),
			string(d.State), finishedAt.Unix())
		return err
	})
}

func scanDownload(row rowScanner) (*Download, error) {
	d := &Download{}
	var sourceKind, downloadType, state string
	var enqueuedAt int64
	err := row.Scan(&d.ID, &d.VolumeID, &d.IssueID, &d.CoveredStart, &d.CoveredEnd, &sourceKind,
		&d.SourceName, &d.WebLink, &d.WebTitle, &d.WebSubTitle, &d.DownloadLink, &d.PureLink,
		&downloadType, &d.Title, &d.TargetFolder, &d.Size, &state, &d.Progress, &d.Speed,
		&d.ExternalID, &enqueuedAt)
	if err != nil {
		return nil, errors.Wrap(err, "scan download")
	}
	d.SourceKind = domain.SourceKind(sourceKind)
	d.DownloadType = domain.DownloadType(downloadType)
	d.State = domain.DownloadState(state)
	d.EnqueuedAt = time.Unix(enqueuedAt, 0)
	return d, nil
}
