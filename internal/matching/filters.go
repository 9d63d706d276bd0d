// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"context"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// Blocklist is the narrow interface the search-result-match filter
// consults; internal/store.Store satisfies it.
type Blocklist interface {
	ContainsLink(ctx context.Context, downloadLink, webLink string) (bool, error)
}

// FolderExtractionFilter decides whether a file found while scanning a
// volume's folder actually belongs to that volume. It is deliberately
// conservative: absent data is treated as a pass, not a rejection.
func FolderExtractionFilter(file domain.Fingerprint, volume VolumeRef, volumeTitle string, issues []VolumeIssue, endYear int) bool {
	annual := isAnnual(volumeTitle)

	matchingTitle := TitlesMatch(file.Series, volumeTitle, false)
	matchingYear := file.HasYear && YearsMatch(volume.Year, file.Year, endYear, false)
	matchingVolumeNumber := VolumeNumberMatches(volume, issues, file.VolumeNumber, false)
	neitherFound := !file.HasYear && !file.VolumeNumber.IsSet()

	return matchingTitle &&
		file.Annual == annual &&
		(matchingYear || matchingVolumeNumber || neitherFound)
}

// FileImportingFilter decides whether a scanned file's fingerprint matches
// a specific volume closely enough to link its issue(s) to it.
func FileImportingFilter(file domain.Fingerprint, volume VolumeRef, issues []VolumeIssue, numberToYear map[float64]int) bool {
	var issueNumber domain.Number
	switch {
	case file.IssueNumber.IsSet():
		issueNumber = file.IssueNumber
	case volume.SpecialVersion == domain.SpecialVersionVolumeAsIssue && file.VolumeNumber.IsSet():
		start, end := file.VolumeNumber.Bounds()
		issueNumber = domain.Span(float64(start), float64(end))
	}

	matchingSpecialVersion := SpecialVersionsCompatible(volume.SpecialVersion, file.SpecialVersion, file.IssueNumber)
	matchingVolumeNumber := VolumeNumberMatches(volume, issues, file.VolumeNumber, false)

	var endYear int
	if issueNumber.IsSet() {
		lo, _ := issueNumber.Bounds()
		endYear = numberToYear[lo]
	}
	matchingYear := file.HasYear && YearsMatch(volume.Year, file.Year, endYear, false)

	return matchingSpecialVersion && (matchingVolumeNumber || matchingYear)
}

// AggregatorGroupFilter decides whether a DownloadGroup parsed off an
// aggregator article is a match for the volume being searched.
func AggregatorGroupFilter(group domain.Fingerprint, groupSeries string, volume VolumeRef, volumeTitle string, lastIssueYear int, issues []VolumeIssue) bool {
	annual := isAnnual(volumeTitle)

	matchingTitle := TitlesMatch(volumeTitle, groupSeries, false)
	matchingVolumeNumber := VolumeNumberMatches(volume, issues, group.VolumeNumber, true)
	matchingYear := YearsMatch(volume.Year, group.Year, lastIssueYear, true)
	if !group.HasYear {
		matchingYear = true
	}
	matchingSpecialVersion := SpecialVersionsCompatible(volume.SpecialVersion, group.SpecialVersion, group.IssueNumber)

	return matchingTitle &&
		group.Annual == annual &&
		matchingSpecialVersion &&
		matchingVolumeNumber &&
		matchingYear
}

// SearchResultMatch is the outcome of checking one search result, carrying
// the reason for a non-match so the UI and logs can explain a rejection.
type SearchResultMatch struct {
	Match      bool
	MatchIssue string
}

// CheckSearchResultMatch decides whether a Release is a match for what
// was searched for: a volume search (calculatedIssueNumber absent) or an
// issue search (calculatedIssueNumber set).
func CheckSearchResultMatch(
	ctx context.Context,
	bl Blocklist,
	result domain.Fingerprint,
	resultLink string,
	volume VolumeRef,
	volumeTitle, altTitle string,
	issues []VolumeIssue,
	numberToYear map[float64]int,
	calculatedIssueNumber domain.Number,
) SearchResultMatch {
	annual := isAnnual(volumeTitle)

	if bl != nil {
		blocked, err := bl.ContainsLink(ctx, resultLink, resultLink)
		if err == nil && blocked {
			return SearchResultMatch{Match: false, MatchIssue: "Link is blocklisted"}
		}
	}

	if result.Annual != annual {
		return SearchResultMatch{Match: false, MatchIssue: "Annual conflict"}
	}

	if !TitlesMatch(volumeTitle, result.Series, false) && !(altTitle != "" && TitlesMatch(altTitle, result.Series, false)) {
		return SearchResultMatch{Match: false, MatchIssue: "Titles don't match"}
	}

	if !VolumeNumberMatches(volume, issues, result.VolumeNumber, true) {
		return SearchResultMatch{Match: false, MatchIssue: "Volume numbers don't match"}
	}

	if !SpecialVersionsCompatible(volume.SpecialVersion, result.SpecialVersion, result.IssueNumber) {
		return SearchResultMatch{Match: false, MatchIssue: "Special version conflict"}
	}

	var issueNumber domain.Number
	switch {
	case result.IssueNumber.IsSet():
		issueNumber = result.IssueNumber
	case volume.SpecialVersion == domain.SpecialVersionVolumeAsIssue && result.VolumeNumber.IsSet():
		start, end := result.VolumeNumber.Bounds()
		issueNumber = domain.Span(float64(start), float64(end))
	}

	if volume.SpecialVersion == domain.SpecialVersionNormal || volume.SpecialVersion == domain.SpecialVersionVolumeAsIssue {
		if !calculatedIssueNumber.IsSet() {
			// Volume search: every number the result claims to cover must
			// exist in the volume's own issue list.
			if issueNumber.IsSet() {
				lo, hi := issueNumber.Bounds()
				for n := lo; n <= hi; n++ {
					if _, ok := numberToYear[n]; !ok {
						return SearchResultMatch{Match: false, MatchIssue: "Issue numbers don't match"}
					}
				}
			}
		} else if !issueNumber.IsSet() || issueNumber.Value() != calculatedIssueNumber.Value() || issueNumber.IsRange() != calculatedIssueNumber.IsRange() {
			return SearchResultMatch{Match: false, MatchIssue: "Issue numbers don't match"}
		}
	}

	var endYear int
	if issueNumber.IsSet() {
		lo, _ := issueNumber.Bounds()
		endYear = numberToYear[lo]
	}
	if !YearsMatch(volume.Year, result.Year, endYear, true) {
		return SearchResultMatch{Match: false, MatchIssue: "Year doesn't match"}
	}

	return SearchResultMatch{Match: true}
}
