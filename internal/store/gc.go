// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// GC deletes every files row with no remaining issues_files or volume_files
// link. UnlinkFile and cascading issue/volume deletes leave such rows
// behind; the scanner calls this at the end of every scan to reap them.
func (s *Store) GC(ctx context.Context) (int64, error) {
	var removed int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM files
			WHERE id NOT IN (SELECT file_id FROM issues_files)
			AND id NOT IN (SELECT file_id FROM volume_files)`)
		if err != nil {
			return errors.Wrap(err, "gc orphan files")
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Debug().Int64("removed", removed).Msg("[STORE] gc removed orphan file rows")
	}
	return removed, nil
}
