// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// archiveToCBZ converts any archive format mholt/archives can read (RAR,
// 7z, tar.gz, ...) into a CBZ by extracting it to a scratch directory and
// re-archiving the result as a zip.
type archiveToCBZ struct {
	ext string
}

func (a archiveToCBZ) SourceExt() string    { return a.ext }
func (archiveToCBZ) TargetFormat() string   { return "cbz" }

func (a archiveToCBZ) Convert(ctx context.Context, path string) (string, error) {
	scratch, err := os.MkdirTemp(filepath.Dir(path), ".convert-*")
	if err != nil {
		return "", errors.Wrap(err, "create scratch dir")
	}
	defer os.RemoveAll(scratch)

	if err := ExtractTo(ctx, path, scratch); err != nil {
		return "", errors.Wrapf(err, "extract %s", path)
	}

	ext := filepath.Ext(path)
	if a.ext == ".tar.gz" {
		ext = ".tar.gz"
	}
	target := strings.TrimSuffix(path, ext) + ".cbz"

	if err := archiveAsZip(ctx, scratch, target); err != nil {
		return "", errors.Wrapf(err, "repack %s as cbz", path)
	}
	return target, nil
}

// ExtractTo unpacks every file inside the archive at path into dir,
// flattening to a single directory level since post-processing's folder
// filter only cares about filenames, not the archive's internal layout.
// Shared by the archive-to-CBZ converter and the torrent/usenet
// extraction chain, which both need to unpack an arbitrary archive format
// the same way.
func ExtractTo(ctx context.Context, path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format, reader, err := archives.Identify(ctx, path, f)
	if err != nil {
		return errors.Wrap(err, "identify archive format")
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return errors.Errorf("format %T does not support extraction", format)
	}

	return extractor.Extract(ctx, reader, func(ctx context.Context, info archives.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		dest := filepath.Join(dir, filepath.Base(info.NameInArchive))
		rc, err := info.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = out.ReadFrom(rc)
		return err
	})
}

// archiveAsZip packs every file directly under dir into a new zip at dest.
func archiveAsZip(ctx context.Context, dir, dest string) error {
	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{dir: ""})
	if err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	format := archives.Zip{}
	return format.Archive(ctx, out, files)
}

var _ Converter = archiveToCBZ{}
