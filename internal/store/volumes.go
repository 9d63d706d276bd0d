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

// Volume is the catalogue entity owned by the library store, one
// folder on disk, a set of issues underneath it.
type Volume struct {
	ID                   int64
	CatalogueID          string
	Title                string
	AltTitle             string
	Year                 int
	Publisher            string
	VolumeNumber         int
	Description          string
	Folder               string
	RootFolderID         int64
	Monitored            bool
	SpecialVersion       domain.SpecialVersion
	SpecialVersionLocked bool
	LastRefresh          time.Time
}

func (s *Store) CreateVolume(ctx context.Context, v *Volume) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO volumes (catalogue_id, title, alt_title, year, publisher, volume_number,
				description, folder, root_folder_id, monitored, special_version, special_version_locked, last_refresh)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.CatalogueID, v.Title, v.AltTitle, nullInt(v.Year), v.Publisher, v.VolumeNumber,
			v.Description, v.Folder, v.RootFolderID, boolToInt(v.Monitored), string(v.SpecialVersion),
			boolToInt(v.SpecialVersionLocked), v.LastRefresh.Unix())
		if err != nil {
			return errors.Wrap(err, "insert volume")
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) GetVolume(ctx context.Context, id int64) (*Volume, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, catalogue_id, title, alt_title, year, publisher, volume_number, description,
			folder, root_folder_id, monitored, special_version, special_version_locked, last_refresh
		FROM volumes WHERE id = ?`, id)
	return scanVolume(row)
}

func (s *Store) ListVolumes(ctx context.Context) ([]*Volume, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, catalogue_id, title, alt_title, year, publisher, volume_number, description,
			folder, root_folder_id, monitored, special_version, special_version_locked, last_refresh
		FROM volumes ORDER BY title`)
	if err != nil {
		return nil, errors.Wrap(err, "list volumes")
	}
	defer rows.Close()

	var out []*Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) ListMonitoredVolumes(ctx context.Context) ([]*Volume, error) {
	all, err := s.ListVolumes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Volume, 0, len(all))
	for _, v := range all {
		if v.Monitored {
			out = append(out, v)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVolume(row rowScanner) (*Volume, error) {
	v := &Volume{}
	var year sql.NullInt64
	var special string
	var lastRefresh int64
	var monitored, locked int

	err := row.Scan(&v.ID, &v.CatalogueID, &v.Title, &v.AltTitle, &year, &v.Publisher, &v.VolumeNumber,
		&v.Description, &v.Folder, &v.RootFolderID, &monitored, &special, &locked, &lastRefresh)
	if err != nil {
		if errNoRows(err) {
			return nil, domain.ErrVolumeNotFound
		}
		return nil, errors.Wrap(err, "scan volume")
	}
	if year.Valid {
		v.Year = int(year.Int64)
	}
	v.Monitored = monitored != 0
	v.SpecialVersionLocked = locked != 0
	v.SpecialVersion = domain.SpecialVersion(special)
	if lastRefresh > 0 {
		v.LastRefresh = time.Unix(lastRefresh, 0)
	}
	return v, nil
}

func nullInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
