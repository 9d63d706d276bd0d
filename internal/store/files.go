// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// File is one on-disk file, joined to issues via issues_files and to a
// volume via volume_files for general (cover/metadata) files.
type File struct {
	ID   int64
	Path string
	Size int64
}

// UpsertFile inserts or updates path's size, returning its row id.
func (s *Store) UpsertFile(ctx context.Context, path string, size int64) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, size) VALUES (?, ?)
			ON CONFLICT(path) DO UPDATE SET size = excluded.size`, path, size); err != nil {
			return errors.Wrap(err, "upsert file")
		}
		// The update branch leaves last_insert_rowid untouched, so the id is
		// always looked up by path.
		row := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path)
		return row.Scan(&id)
	})
	return id, err
}

func (s *Store) FindFileByPath(ctx context.Context, path string) (*File, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT id, path, size FROM files WHERE path = ?`, path)
	f := &File{}
	if err := row.Scan(&f.ID, &f.Path, &f.Size); err != nil {
		if errNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find file by path")
	}
	return f, nil
}

// LinkFileToIssues replaces fileID's issue links with issueIDs —
// rescanning a file clears and re-establishes its links.
func (s *Store) LinkFileToIssues(ctx context.Context, fileID int64, issueIDs []int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues_files WHERE file_id = ?`, fileID); err != nil {
			return err
		}
		for _, issueID := range issueIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO issues_files (issue_id, file_id) VALUES (?, ?)`, issueID, fileID); err != nil {
				return err
			}
		}
		return nil
	})
}

// LinkFileToVolume records fileID as a general (cover/metadata) file of
// volumeID, per the special-version-file rule.
func (s *Store) LinkFileToVolume(ctx context.Context, volumeID, fileID int64, fileType domain.GeneralFileType) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues_files WHERE file_id = ?`, fileID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO volume_files (volume_id, file_id, file_type) VALUES (?, ?, ?)
			ON CONFLICT(volume_id, file_id) DO UPDATE SET file_type = excluded.file_type`,
			volumeID, fileID, string(fileType))
		return err
	})
}

// UnlinkFile removes every issue_files/volume_files row for fileID, leaving
// the bare file row for gc to reap if it no longer exists on disk.
func (s *Store) UnlinkFile(ctx context.Context, fileID int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues_files WHERE file_id = ?`, fileID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM volume_files WHERE file_id = ?`, fileID)
		return err
	})
}

// DeleteFile removes a file row outright (used once gc confirms it's an
// orphan, or the scanner finds the path gone from disk).
func (s *Store) DeleteFile(ctx context.Context, fileID int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
		return err
	})
}

// FilesForVolumeFolder returns every known file row whose path is under
// folder, the restartable scanner's "previously known files" set.
func (s *Store) FilesForVolumeFolder(ctx context.Context, folder string) ([]*File, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, path, size FROM files WHERE path LIKE ? || '%'`, folder)
	if err != nil {
		return nil, errors.Wrap(err, "list files for folder")
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
