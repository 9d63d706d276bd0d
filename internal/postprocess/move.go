// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package postprocess

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/store"
	"github.com/kapowarr/kapowarr/pkg/fsutil"
)

// moveFiles relocates each of files into d's volume folder, flattening
// away whatever subfolder structure the download produced: only the base
// name survives, matching what the naming engine already rendered into the
// leaf component of each path. Any file already at the destination is
// replaced.
func (p *Processor) moveFiles(ctx context.Context, d *store.Download, files []string) ([]string, error) {
	volume, err := p.store.GetVolume(ctx, d.VolumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load destination volume")
	}

	moved := make([]string, 0, len(files))
	for _, src := range files {
		dest := filepath.Join(volume.Folder, filepath.Base(src))
		if err := replaceFile(src, dest); err != nil {
			return moved, errors.Wrapf(err, "move %s to %s", src, dest)
		}
		moved = append(moved, dest)
	}
	return moved, nil
}

// replaceFile moves src to dest, overwriting dest if it already exists,
// falling back to a copy-then-remove when the rename crosses a filesystem
// boundary (os.Rename's EXDEV case, which it cannot handle itself).
func replaceFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return err
		}
	}

	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile duplicates src at dest without touching src: a hardlink when
// both are on the same filesystem (the COPY seeding-handling chain's
// common case, avoiding doubling a payload still being seeded), a byte
// copy otherwise.
func copyFile(src, dest string) error {
	if same, err := fsutil.SameFilesystem(src, filepath.Dir(dest)); err == nil && same {
		if err := os.Link(src, dest); err == nil {
			return nil
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// copyIntoDest duplicates src at dest, overwriting dest if present,
// without ever touching src: used for the COPY seeding-handling chain,
// where the original payload must survive until seeding itself ends.
func copyIntoDest(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return err
		}
	}
	return copyFile(src, dest)
}

// deletePayload removes everything d.Files points at: for a direct/Mega
// download these are plain files; for a torrent/usenet download the single
// entry is the client-reported content path, which may be a file or a
// folder.
func (p *Processor) deletePayload(d *store.Download) error {
	for _, path := range d.Files {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "stat %s", path)
		}
		if info.IsDir() {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil {
			return errors.Wrapf(err, "delete %s", path)
		}
	}
	return nil
}

func nullInt64(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
