// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package postprocess

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/convert"
	"github.com/kapowarr/kapowarr/internal/fingerprint"
	"github.com/kapowarr/kapowarr/internal/matching"
	"github.com/kapowarr/kapowarr/internal/scanner"
	"github.com/kapowarr/kapowarr/internal/store"
)

// extractAndScan handles a torrent/usenet payload once it's known whole: a
// single archive file is first unpacked to a scratch folder, then every
// payload folder (the original's contents, or the scratch extraction) is
// filtered file-by-file against the owning volume, non-relevant files are
// dropped, relevant ones are moved into the volume's folder, and the result
// is scanned and (optionally) converted.
//
// duringSeeding is true for the COPY seeding-handling chain, which must
// leave the original payload alone (a later completed-seeding chain deletes
// it); it is false for the COMPLETE chain, which owns cleanup of the
// payload itself once its contents have been extracted out of it.
func (p *Processor) extractAndScan(ctx context.Context, d *store.Download, duringSeeding bool) error {
	if len(d.Files) == 0 {
		return errors.New("postprocess: torrent/usenet download has no known content path")
	}
	payload := d.Files[0]

	volume, err := p.store.GetVolume(ctx, d.VolumeID)
	if err != nil {
		return errors.Wrap(err, "load destination volume")
	}

	info, err := os.Stat(payload)
	if err != nil {
		return errors.Wrapf(err, "stat payload %s", payload)
	}

	sourceDir := payload
	archiveExtracted := false
	if !info.IsDir() {
		scratch, err := os.MkdirTemp(filepath.Dir(payload), ".extract-*")
		if err != nil {
			return errors.Wrap(err, "create extraction scratch dir")
		}
		if err := convert.ExtractTo(ctx, payload, scratch); err != nil {
			os.RemoveAll(scratch)
			return errors.Wrapf(err, "extract payload %s", payload)
		}
		sourceDir = scratch
		archiveExtracted = true
	}

	moved, err := p.extractRelevantFiles(ctx, volume, sourceDir, duringSeeding && !archiveExtracted)
	if err != nil {
		if archiveExtracted {
			os.RemoveAll(sourceDir)
		}
		return err
	}

	if archiveExtracted {
		os.RemoveAll(sourceDir)
		if !duringSeeding {
			if err := os.Remove(payload); err != nil {
				log.Warn().Err(err).Str("path", payload).Msg("[POSTPROCESS] failed to remove extracted archive")
			}
		}
	} else if !duringSeeding {
		if err := os.RemoveAll(sourceDir); err != nil {
			log.Warn().Err(err).Str("path", sourceDir).Msg("[POSTPROCESS] failed to remove extracted torrent folder")
		}
	}

	if _, err := scanner.Scan(ctx, p.store, d.VolumeID, moved); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] scan after extraction failed")
	}
	p.convertAndRescan(ctx, d.VolumeID, moved)
	return nil
}

// extractRelevantFiles walks sourceDir, keeps only files the extraction
// filter judges as belonging to volume, deletes the rest, and moves the
// keepers into volume's folder. preserveSource is true only when sourceDir
// is itself the original torrent payload still being seeded: deleting a
// non-matching file would still touch the client's own copy, so those are
// left alone too, and keepers are copied out (hardlinked when possible)
// rather than moved.
func (p *Processor) extractRelevantFiles(ctx context.Context, volume *store.Volume, sourceDir string, preserveSource bool) ([]string, error) {
	issues, err := p.store.IssuesForVolume(ctx, volume.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load issues")
	}
	vref := matching.VolumeRef{VolumeNumber: volume.VolumeNumber, Year: volume.Year, SpecialVersion: volume.SpecialVersion}
	vissues := make([]matching.VolumeIssue, len(issues))
	endYear := volume.Year
	for i, is := range issues {
		vissues[i] = matching.VolumeIssue{CalculatedIssueNumber: is.CalculatedIssueNumber}
	}

	var moved []string
	walkErr := filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		fp := fingerprint.Extract(path, fingerprint.Options{AssumeVolumeNumber: true})
		if !matching.FolderExtractionFilter(fp, vref, volume.Title, vissues, endYear) {
			if preserveSource {
				return nil
			}
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("[POSTPROCESS] failed to delete non-matching extracted file")
			}
			return nil
		}

		dest := filepath.Join(volume.Folder, filepath.Base(path))
		if preserveSource {
			if err := copyIntoDest(path, dest); err != nil {
				return errors.Wrapf(err, "copy extracted file %s", path)
			}
		} else if err := replaceFile(path, dest); err != nil {
			return errors.Wrapf(err, "move extracted file %s", path)
		}
		moved = append(moved, dest)
		return nil
	})
	if walkErr != nil {
		return moved, errors.Wrap(walkErr, "walk extracted payload")
	}
	return moved, nil
}

// convertAndRescan converts every moved file whose source extension has a
// registered converter aimed at a preferred format, then rescans the
// resulting paths. Conversion is best-effort: a single file's failure is
// logged and does not abort the rest of the chain.
func (p *Processor) convertAndRescan(ctx context.Context, volumeID int64, movedPaths []string) {
	settings := p.settings()
	if !settings.Convert {
		return
	}

	var converted []string
	for _, path := range movedPaths {
		c, ok := p.converters.Find(path, settings.FormatPreference)
		if !ok {
			continue
		}
		out, err := c.Convert(ctx, path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("[POSTPROCESS] conversion failed")
			continue
		}
		converted = append(converted, out)
	}
	if len(converted) == 0 {
		return
	}
	if _, err := scanner.Scan(ctx, p.store, volumeID, converted); err != nil {
		log.Error().Err(err).Int64("volume_id", volumeID).Msg("[POSTPROCESS] scan after conversion failed")
	}
}
