// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scanner walks a volume's folder on disk, extracts a fingerprint
// per file, and links files to issues through the file-importing filter.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/fingerprint"
	"github.com/kapowarr/kapowarr/internal/matching"
	"github.com/kapowarr/kapowarr/internal/store"
)

// Store is the narrow persistence surface the scanner needs.
type Store interface {
	GetVolume(ctx context.Context, id int64) (*store.Volume, error)
	IssuesForVolume(ctx context.Context, volumeID int64) ([]*store.Issue, error)
	FindIssueByNumber(ctx context.Context, volumeID int64, n float64) (*store.Issue, error)
	FindIssuesInRange(ctx context.Context, volumeID int64, start, end float64) ([]*store.Issue, error)
	FilesForVolumeFolder(ctx context.Context, folder string) ([]*store.File, error)
	UpsertFile(ctx context.Context, path string, size int64) (int64, error)
	LinkFileToIssues(ctx context.Context, fileID int64, issueIDs []int64) error
	LinkFileToVolume(ctx context.Context, volumeID, fileID int64, fileType domain.GeneralFileType) error
	UnlinkFile(ctx context.Context, fileID int64) error
	DeleteFile(ctx context.Context, fileID int64) error
	GC(ctx context.Context) (int64, error)
}

var scannableExtensions = buildScannableSet()

func buildScannableSet() map[string]bool {
	m := make(map[string]bool)
	for _, ext := range fingerprint.ScannableExtensions() {
		m[ext] = true
	}
	return m
}

func isScannable(path string) bool {
	return scannableExtensions[strings.ToLower(filepath.Ext(path))]
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Result summarizes one Scan invocation's outcome.
type Result struct {
	Scanned int
	Linked  int
	Removed int
	Orphans int64
}

// Scan walks volumeID's folder, extracts a fingerprint for each scannable
// file, and links it via the file-importing filter. If filepathFilter is
// non-empty, only those absolute paths are (re)considered — their prior
// links are cleared first — making the scan restartable. Previously known
// files no longer present on disk are unlinked, and orphan file rows are
// garbage collected at the end.
func Scan(ctx context.Context, st Store, volumeID int64, filepathFilter []string) (Result, error) {
	var res Result

	volume, err := st.GetVolume(ctx, volumeID)
	if err != nil {
		return res, errors.Wrap(err, "load volume")
	}
	issues, err := st.IssuesForVolume(ctx, volumeID)
	if err != nil {
		return res, errors.Wrap(err, "load issues")
	}

	vref := matching.VolumeRef{VolumeNumber: volume.VolumeNumber, Year: volume.Year, SpecialVersion: volume.SpecialVersion}
	vissues := make([]matching.VolumeIssue, len(issues))
	numberToYear := make(map[float64]int, len(issues))
	for i, is := range issues {
		vissues[i] = matching.VolumeIssue{CalculatedIssueNumber: is.CalculatedIssueNumber}
		if is.ReleaseDate != "" {
			numberToYear[is.CalculatedIssueNumber] = extractYearFromDate(is.ReleaseDate, volume.Year)
		}
	}

	known, err := st.FilesForVolumeFolder(ctx, volume.Folder)
	if err != nil {
		return res, errors.Wrap(err, "load known files")
	}
	knownByPath := make(map[string]*store.File, len(known))
	for _, f := range known {
		knownByPath[f.Path] = f
	}

	filterSet := map[string]bool{}
	for _, p := range filepathFilter {
		filterSet[p] = true
	}

	seenOnDisk := map[string]bool{}

	walkErr := filepath.WalkDir(volume.Folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if isHidden(d.Name()) && p != volume.Folder {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || !isScannable(p) {
			return nil
		}
		if len(filterSet) > 0 && !filterSet[p] {
			return nil
		}

		seenOnDisk[p] = true
		res.Scanned++

		info, err := d.Info()
		if err != nil {
			return err
		}

		fp := fingerprint.Extract(p, fingerprint.Options{AssumeVolumeNumber: true})

		fileID, err := st.UpsertFile(ctx, p, info.Size())
		if err != nil {
			return errors.Wrapf(err, "upsert file %s", p)
		}

		if fp.SpecialVersion == domain.SpecialVersionCover || fp.SpecialVersion == domain.SpecialVersionMetadata {
			fileType := domain.GeneralFileMetadata
			if fp.SpecialVersion == domain.SpecialVersionCover {
				fileType = domain.GeneralFileCover
			}
			if err := st.LinkFileToVolume(ctx, volumeID, fileID, fileType); err != nil {
				return errors.Wrapf(err, "link general file %s", p)
			}
			res.Linked++
			return nil
		}

		if !matching.FileImportingFilter(fp, vref, vissues, numberToYear) {
			if err := st.UnlinkFile(ctx, fileID); err != nil {
				return errors.Wrapf(err, "unlink non-matching file %s", p)
			}
			return nil
		}

		issueIDs, err := resolveIssueIDs(ctx, st, volumeID, volume, fp)
		if err != nil {
			return errors.Wrapf(err, "resolve issues for %s", p)
		}
		if len(issueIDs) == 0 {
			if err := st.UnlinkFile(ctx, fileID); err != nil {
				return errors.Wrapf(err, "unlink unmatched file %s", p)
			}
			return nil
		}

		if err := st.LinkFileToIssues(ctx, fileID, issueIDs); err != nil {
			return errors.Wrapf(err, "link file %s", p)
		}
		res.Linked++
		return nil
	})
	if walkErr != nil {
		return res, errors.Wrap(walkErr, "walk volume folder")
	}

	for p, f := range knownByPath {
		if seenOnDisk[p] {
			continue
		}
		if len(filterSet) > 0 && !filterSet[p] {
			continue
		}
		if err := st.UnlinkFile(ctx, f.ID); err != nil {
			return res, errors.Wrapf(err, "unlink missing file %s", p)
		}
		if err := st.DeleteFile(ctx, f.ID); err != nil {
			return res, errors.Wrapf(err, "delete missing file %s", p)
		}
		res.Removed++
	}

	removed, err := st.GC(ctx)
	if err != nil {
		return res, errors.Wrap(err, "gc orphan files")
	}
	res.Orphans = removed

	log.Info().Int64("volume_id", volumeID).Int("scanned", res.Scanned).Int("linked", res.Linked).
		Int("removed", res.Removed).Int64("orphans_gced", res.Orphans).Msg("[SCANNER] scan complete")
	return res, nil
}

func resolveIssueIDs(ctx context.Context, st Store, volumeID int64, volume *store.Volume, fp domain.Fingerprint) ([]int64, error) {
	var number domain.Number
	switch {
	case fp.IssueNumber.IsSet():
		number = fp.IssueNumber
	case volume.SpecialVersion == domain.SpecialVersionVolumeAsIssue && fp.VolumeNumber.IsSet():
		start, end := fp.VolumeNumber.Bounds()
		number = domain.Span(float64(start), float64(end))
	default:
		return nil, nil
	}

	if !number.IsRange() {
		issue, err := st.FindIssueByNumber(ctx, volumeID, number.Value())
		if err != nil {
			if errors.Is(err, domain.ErrIssueNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []int64{issue.ID}, nil
	}

	lo, hi := number.Bounds()
	issues, err := st.FindIssuesInRange(ctx, volumeID, lo, hi)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(issues))
	for i, is := range issues {
		ids[i] = is.ID
	}
	return ids, nil
}

func extractYearFromDate(date string, fallback int) int {
	if len(date) < 4 {
		return fallback
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return fallback
	}
	return year
}
