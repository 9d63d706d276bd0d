// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// Issue is one numbered unit within a Volume. CalculatedIssueNumber is
// the decimal normalization used for range membership and joins.
type Issue struct {
	ID                    int64
	VolumeID              int64
	CatalogueID           string
	RawIssueNumber        string
	CalculatedIssueNumber float64
	Title                 string
	ReleaseDate           string
	Description           string
	Monitored             bool
}

func (s *Store) CreateIssue(ctx context.Context, i *Issue) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO issues (volume_id, catalogue_id, raw_issue_number, calculated_issue_number,
				title, release_date, description, monitored)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i.VolumeID, i.CatalogueID, i.RawIssueNumber, i.CalculatedIssueNumber,
			i.Title, i.ReleaseDate, i.Description, boolToInt(i.Monitored))
		if err != nil {
			return errors.Wrap(err, "insert issue")
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) GetIssue(ctx context.Context, id int64) (*Issue, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, volume_id, catalogue_id, raw_issue_number, calculated_issue_number,
			title, release_date, description, monitored
		FROM issues WHERE id = ?`, id)
	return scanIssue(row)
}

// IssuesForVolume returns every issue of a volume, ordered by calculated
// number, the order matching rules and search ranking both rely on.
func (s *Store) IssuesForVolume(ctx context.Context, volumeID int64) ([]*Issue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, volume_id, catalogue_id, raw_issue_number, calculated_issue_number,
			title, release_date, description, monitored
		FROM issues WHERE volume_id = ? ORDER BY calculated_issue_number`, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "list issues for volume")
	}
	defer rows.Close()

	var out []*Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// FindIssueByNumber locates the one issue of volumeID whose calculated
// number equals n, per the "single issue number" linking rule.
func (s *Store) FindIssueByNumber(ctx context.Context, volumeID int64, n float64) (*Issue, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, volume_id, catalogue_id, raw_issue_number, calculated_issue_number,
			title, release_date, description, monitored
		FROM issues WHERE volume_id = ? AND calculated_issue_number = ?`, volumeID, n)
	return scanIssue(row)
}

// FindIssuesInRange locates every issue of volumeID whose calculated number
// falls in [start,end] inclusive, per the "range" linking rule.
func (s *Store) FindIssuesInRange(ctx context.Context, volumeID int64, start, end float64) ([]*Issue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, volume_id, catalogue_id, raw_issue_number, calculated_issue_number,
			title, release_date, description, monitored
		FROM issues WHERE volume_id = ? AND calculated_issue_number BETWEEN ? AND ?
		ORDER BY calculated_issue_number`, volumeID, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "list issues in range")
	}
	defer rows.Close()

	var out []*Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// OpenIssues returns monitored issues of volumeID with no linked file yet —
// the candidate set auto-pick cover-building recurses over.
func (s *Store) OpenIssues(ctx context.Context, volumeID int64) ([]*Issue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT i.id, i.volume_id, i.catalogue_id, i.raw_issue_number, i.calculated_issue_number,
			i.title, i.release_date, i.description, i.monitored
		FROM issues i
		WHERE i.volume_id = ? AND i.monitored = 1
		AND NOT EXISTS (SELECT 1 FROM issues_files f WHERE f.issue_id = i.id)
		ORDER BY i.calculated_issue_number`, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "list open issues")
	}
	defer rows.Close()

	var out []*Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanIssue(row rowScanner) (*Issue, error) {
	i := &Issue{}
	var monitored int
	err := row.Scan(&i.ID, &i.VolumeID, &i.CatalogueID, &i.RawIssueNumber, &i.CalculatedIssueNumber,
		&i.Title, &i.ReleaseDate, &i.Description, &monitored)
	if err != nil {
		if errNoRows(err) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, errors.Wrap(err, "scan issue")
	}
	i.Monitored = monitored != 0
	return i, nil
}
