// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matching holds every predicate that decides whether two pieces
// of comic metadata refer to the same thing: a scanned file against a
// volume, a download-group title against a volume, a search result against
// what was searched for.
package matching

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/kapowarr/kapowarr/internal/domain"
)

var cleanTitleRegex = regexp.MustCompile(`(?i)annuals|/|-|–|\+|,|\.|!|:|\bthe\s|\band\b|&|’|'|"|\bone-shot\b|\btpb\b`)

func cleanTitle(title string) string {
	cleaned := cleanTitleRegex.ReplaceAllString(strings.ToLower(title), "")
	return strings.ReplaceAll(cleaned, " ", "")
}

// TitlesMatch reports whether two titles refer to the same series. When
// allowContains is set, it also matches if title2 appears anywhere inside
// title1 (used when checking an alt-title against a loosely-formatted
// search result).
func TitlesMatch(title1, title2 string, allowContains bool) bool {
	clean1 := cleanTitle(title1)
	clean2 := cleanTitle(title2)
	if allowContains {
		return strings.Contains(clean1, clean2)
	}
	return clean1 == clean2
}

// TitleSimilarity scores how close two titles are after cleaning, for
// ranking near-misses rather than deciding a hard match/no-match.
func TitleSimilarity(title1, title2 string) int {
	return fuzzy.LevenshteinDistance(cleanTitle(title1), cleanTitle(title2))
}

// YearsMatch checks two years with one year of wiggle room either side,
// per the source's conservative year-border rule.
func YearsMatch(referenceYear, checkYear int, endYear int, conservative bool) bool {
	if referenceYear == 0 || checkYear == 0 {
		return conservative
	}
	endBorder := endYear
	if endBorder == 0 {
		endBorder = referenceYear
	}
	return referenceYear-1 <= checkYear && checkYear <= endBorder+1
}

// VolumeIssue is the minimal shape matching needs from a stored issue: its
// calculated number, to test VOLUME_AS_ISSUE candidate numbers against.
type VolumeIssue struct {
	CalculatedIssueNumber float64
}

// VolumeRef is the minimal shape matching needs from a stored volume.
type VolumeRef struct {
	VolumeNumber   int
	Year           int
	SpecialVersion domain.SpecialVersion
}

// VolumeNumberMatches checks a candidate volume number (or range, for
// VOLUME_AS_ISSUE) against volume's own number/year, falling back to
// testing it as an issue number when the volume is VOLUME_AS_ISSUE.
func VolumeNumberMatches(volume VolumeRef, issues []VolumeIssue, check domain.IntNumber, conservative bool) bool {
	if volume.VolumeNumber == 0 && volume.Year == 0 && volume.SpecialVersion != domain.SpecialVersionVolumeAsIssue {
		return conservative
	}
	if !check.IsSet() {
		return conservative
	}

	if !check.IsRange() {
		n := check.Value()
		if n == volume.VolumeNumber {
			return true
		}
		if YearsMatch(volume.Year, n, 0, false) {
			return true
		}
	}

	if volume.SpecialVersion != domain.SpecialVersionVolumeAsIssue {
		return false
	}

	numbers := check.Values()
	found := 0
	for _, n := range numbers {
		for _, issue := range issues {
			if issue.CalculatedIssueNumber == float64(n) {
				found++
				break
			}
		}
	}
	return found == len(numbers)
}

// SpecialVersionsCompatible checks whether a reference special version
// (normally the volume's) is compatible with a check special version
// (normally a file's or result's), accounting for COVER/METADATA always
// matching and the one-shot/hard-cover single-issue exception.
func SpecialVersionsCompatible(reference, check domain.SpecialVersion, issueNumber domain.Number) bool {
	if check == reference || check == domain.SpecialVersionCover || check == domain.SpecialVersionMetadata {
		return true
	}

	if issueNumber.IsSet() && !issueNumber.IsRange() && issueNumber.Value() == 1.0 &&
		(reference == domain.SpecialVersionHardCover || reference == domain.SpecialVersionOneShot) {
		return true
	}

	if reference == domain.SpecialVersionVolumeAsIssue && check == domain.SpecialVersionNormal {
		return true
	}

	return check == domain.SpecialVersionTPB &&
		(reference == domain.SpecialVersionHardCover ||
			reference == domain.SpecialVersionOneShot ||
			reference == domain.SpecialVersionVolumeAsIssue)
}

func isAnnual(title string) bool {
	return strings.Contains(strings.ToLower(title), "annual")
}
