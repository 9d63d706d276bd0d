// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"path"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// Options toggles the three optional extraction behaviors.
type Options struct {
	// AssumeVolumeNumber defaults an absent volume number to 1.
	AssumeVolumeNumber bool
	// PreferFolderYear searches the folder name for a year before the
	// filename, instead of after.
	PreferFolderYear bool
	// FixYear corrects an out-of-range year whose middle digits look
	// transposed.
	FixYear bool
}

// Extract distills filepath into a Fingerprint through a fixed sequence
// of deterministic steps.
func Extract(filepath string, opts Options) domain.Fingerprint {
	// Step 1: metadata filename detection.
	isMetadata := isMetadataFilename(path.Base(strings.ToLower(filepath)))
	if isMetadata {
		filepath = path.Dir(filepath)
	}

	// Step 2: annual detection, against the (possibly substituted) path.
	annual := isAnnual(path.Base(filepath), path.Base(path.Dir(filepath)))

	// Step 3: normalize.
	filepath = normalizeString(filepath)

	isImage := isImageFile(filepath)

	filename := path.Base(filepath)
	filename = stripKnownExtension(filename)

	// Step 4: strip balanced bracket runs for volume detection only.
	cleanFilename := stripBalancedRuns(filename) + " "

	foldername := path.Base(path.Dir(filepath))
	upperFoldername := path.Base(path.Dir(path.Dir(filepath)))

	// Step 6: year.
	yearOrder := []string{filename, foldername, upperFoldername}
	if opts.PreferFolderYear {
		yearOrder = []string{foldername, filename, upperFoldername}
	}

	var year int
	hasYear := false
	var filenameYearSpans, folderYearSpans []span

	for _, loc := range yearOrder {
		matches := findYears(loc)
		if len(matches) == 0 {
			continue
		}
		if !hasYear {
			year = matches[0].year
			hasYear = true
		}
		if loc == filename {
			for _, m := range matches {
				filenameYearSpans = append(filenameYearSpans, m.span)
			}
		}
		if loc == foldername {
			for _, m := range matches {
				folderYearSpans = append(folderYearSpans, m.span)
			}
		}
	}
	if hasYear && opts.FixYear {
		year = fixYear(year)
	}

	// Step 7: volume number.
	var volumeNumber domain.IntNumber
	volumePos, volumeEnd := len(cleanFilename)+1, 0
	if !isImage {
		if vf, ok := findVolumeInFilename(cleanFilename); ok {
			volumeNumber = vf.number
			volumePos = vf.span.start
			volumeEnd = vf.span.end
		}
	}

	volumeFolderPos, volumeFolderEnd := len(foldername)+1, 0
	volumeFoundInFolder := false
	if vf, ok := findVolumeInFolder(foldername); ok {
		volumeFolderPos = vf.span.start
		volumeFolderEnd = vf.span.end
		volumeFoundInFolder = true
		if !volumeNumber.IsSet() {
			volumeNumber = vf.number
		}
	}

	if !volumeNumber.IsSet() && !volumeFoundInFolder && opts.AssumeVolumeNumber {
		volumeNumber = domain.SingleInt(1)
	}

	// Step 8: special version + cover.
	var specialVersion domain.SpecialVersion
	if isMetadata {
		specialVersion = domain.SpecialVersionMetadata
	}
	var specialSpan span
	hasSpecialSpanForExclusion := false

	if specialVersion == domain.SpecialVersionNormal {
		if coverSpan, ok := findCover(filename); ok {
			specialVersion = domain.SpecialVersionCover
			specialSpan = coverSpan
			hasSpecialSpanForExclusion = true
		} else if sv, sp, ok := findSpecialVersion(filename); ok {
			specialVersion = sv
			specialSpan = sp
			_ = specialSpan
		}
	}

	// Step 9: issue number, only when not cover/metadata-overridden and no
	// special version chosen yet.
	var issueNumber domain.Number
	if specialVersion == domain.SpecialVersionNormal {
		var target string
		var yearSpans []span
		var afterPos, beforePos int
		if !isImage {
			target = filename
			yearSpans = filenameYearSpans
			afterPos, beforePos = volumeEnd, volumePos
		} else {
			target = foldername
			yearSpans = folderYearSpans
			afterPos, beforePos = volumeFolderEnd, volumeFolderPos
		}

		if found, ok := findIssueNumberIn(substringFrom(target, afterPos), orderedPatterns, shiftSpans(yearSpans, -afterPos), shiftSpan(specialSpan, -afterPos), hasSpecialSpanForExclusion); ok {
			issueNumber = found.number
		} else if found, ok := findIssueNumberIn(substringTo(target, beforePos), beforeVolumePatterns, yearSpans, specialSpan, hasSpecialSpanForExclusion); ok {
			issueNumber = found.number
		} else if n, ok := findIssueNumberLastResort(stripBalancedRuns(target)); ok {
			issueNumber = n
		}
	}

	// Step 10: TPB fallback.
	if !issueNumber.IsSet() && specialVersion == domain.SpecialVersionNormal {
		specialVersion = domain.SpecialVersionTPB
	}

	// Step 11: series name.
	var filenameSpans []span
	filenameSpans = append(filenameSpans, filenameYearSpans...)
	if volumeEnd > 0 {
		filenameSpans = append(filenameSpans, span{volumePos, volumeEnd})
	}
	if hasSpecialSpanForExclusion {
		filenameSpans = append(filenameSpans, specialSpan)
	}

	var folderSpans []span
	folderSpans = append(folderSpans, folderYearSpans...)
	if volumeFoundInFolder {
		folderSpans = append(folderSpans, span{volumeFolderPos, volumeFolderEnd})
	}

	series := computeSeries(filename, filenameSpans, foldername, folderSpans, upperFoldername)

	fp := domain.Fingerprint{
		Series:         series,
		Year:           year,
		HasYear:        hasYear,
		VolumeNumber:   volumeNumber,
		IssueNumber:    issueNumber,
		SpecialVersion: specialVersion,
		Annual:         annual,
	}
	return fp
}

func substringFrom(s string, pos int) string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s) {
		return ""
	}
	return s[pos:]
}

func substringTo(s string, pos int) string {
	if pos < 0 {
		return ""
	}
	if pos > len(s) {
		pos = len(s)
	}
	return s[:pos]
}

func shiftSpans(spans []span, delta int) []span {
	out := make([]span, len(spans))
	for i, s := range spans {
		out[i] = span{s.start + delta, s.end + delta}
	}
	return out
}

func shiftSpan(s span, delta int) span {
	return span{s.start + delta, s.end + delta}
}
