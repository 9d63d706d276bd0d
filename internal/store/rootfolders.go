// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// RootFolder is a library root on disk under which volume folders live.
type RootFolder struct {
	ID   int64
	Path string
}

// ErrRootFolderNested is returned when a candidate root folder path is a
// parent or child of an existing one, a configuration the scanner can't
// disambiguate (a file would appear to belong to two roots at once).
var ErrRootFolderNested = errors.New("root folder path nests with an existing root folder")

func (s *Store) CreateRootFolder(ctx context.Context, path string) (int64, error) {
	existing, err := s.ListRootFolders(ctx)
	if err != nil {
		return 0, err
	}
	for _, rf := range existing {
		if pathNests(rf.Path, path) {
			return 0, ErrRootFolderNested
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, "stat root folder")
	}
	if !info.IsDir() {
		return 0, errors.New("root folder path is not a directory")
	}

	var id int64
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO root_folders (path) VALUES (?)`, path)
		if err != nil {
			return errors.Wrap(err, "insert root folder")
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) ListRootFolders(ctx context.Context) ([]*RootFolder, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, path FROM root_folders ORDER BY path`)
	if err != nil {
		return nil, errors.Wrap(err, "list root folders")
	}
	defer rows.Close()

	var out []*RootFolder
	for rows.Next() {
		rf := &RootFolder{}
		if err := rows.Scan(&rf.ID, &rf.Path); err != nil {
			return nil, err
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRootFolder(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM volumes WHERE root_folder_id = ?`, id).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return errors.New("root folder still has volumes assigned to it")
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM root_folders WHERE id = ?`, id)
		return err
	})
}

// pathNests reports whether a and b share a containment relationship
// (equal, or one is a directory ancestor of the other).
func pathNests(a, b string) bool {
	a = strings.TrimRight(a, "/")
	b = strings.TrimRight(b, "/")
	if a == b {
		return true
	}
	return strings.HasPrefix(a+"/", b+"/") || strings.HasPrefix(b+"/", a+"/")
}
