// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kapowarr/kapowarr/internal/domain"
)

func TestTitlesMatch(t *testing.T) {
	assert.True(t, TitlesMatch("The Batman", "Batman", false))
	assert.True(t, TitlesMatch("Batman & Robin", "Batman and Robin", false))
	assert.False(t, TitlesMatch("Batman", "Superman", false))
	assert.True(t, TitlesMatch("Batman: The Dark Knight Returns", "Dark Knight Returns", true))
}

func TestYearsMatch(t *testing.T) {
	assert.True(t, YearsMatch(2020, 2020, 0, false))
	assert.True(t, YearsMatch(2020, 2021, 0, false))
	assert.True(t, YearsMatch(2020, 2019, 0, false))
	assert.False(t, YearsMatch(2020, 2023, 0, false))
	assert.True(t, YearsMatch(2020, 0, 0, true))
	assert.False(t, YearsMatch(2020, 2025, 0, false))
}

func TestVolumeNumberMatches(t *testing.T) {
	vol := VolumeRef{VolumeNumber: 2, Year: 2015}
	assert.True(t, VolumeNumberMatches(vol, nil, domain.SingleInt(2), false))
	assert.False(t, VolumeNumberMatches(vol, nil, domain.SingleInt(3), false))
	assert.True(t, VolumeNumberMatches(vol, nil, domain.SingleInt(2015), false), "year as volume number")
}

func TestVolumeNumberMatchesVolumeAsIssue(t *testing.T) {
	vol := VolumeRef{SpecialVersion: domain.SpecialVersionVolumeAsIssue}
	issues := []VolumeIssue{{CalculatedIssueNumber: 5}, {CalculatedIssueNumber: 6}}
	assert.True(t, VolumeNumberMatches(vol, issues, domain.SpanInt(5, 6), false))
	assert.False(t, VolumeNumberMatches(vol, issues, domain.SpanInt(5, 7), false))
}

func TestSpecialVersionsCompatible(t *testing.T) {
	assert.True(t, SpecialVersionsCompatible(domain.SpecialVersionTPB, domain.SpecialVersionTPB, domain.NoNumber))
	assert.True(t, SpecialVersionsCompatible(domain.SpecialVersionNormal, domain.SpecialVersionCover, domain.NoNumber))
	assert.True(t, SpecialVersionsCompatible(domain.SpecialVersionOneShot, domain.SpecialVersionNormal, domain.Single(1)))
	assert.False(t, SpecialVersionsCompatible(domain.SpecialVersionOneShot, domain.SpecialVersionNormal, domain.Single(2)))
	assert.True(t, SpecialVersionsCompatible(domain.SpecialVersionHardCover, domain.SpecialVersionTPB, domain.NoNumber))
}

func TestFolderExtractionFilterNeitherFound(t *testing.T) {
	file := domain.Fingerprint{Series: "Saga"}
	vol := VolumeRef{Year: 2012}
	assert.True(t, FolderExtractionFilter(file, vol, "Saga", nil, 0))
}

func TestFileImportingFilter(t *testing.T) {
	file := domain.Fingerprint{Series: "Saga", IssueNumber: domain.Single(1), HasYear: true, Year: 2012}
	vol := VolumeRef{Year: 2012}
	numberToYear := map[float64]int{1: 2012}
	assert.True(t, FileImportingFilter(file, vol, nil, numberToYear))
}

func TestFileImportingFilterRangedIssueNumberUsesStartYear(t *testing.T) {
	// Issues 11-25 span two printed years; the range's year must be looked
	// up by its first issue, not its last, so a file claiming the range but
	// stamped with the *later* year is rejected.
	file := domain.Fingerprint{Series: "Saga", IssueNumber: domain.Span(11, 25), HasYear: true, Year: 2014}
	vol := VolumeRef{Year: 2011}
	numberToYear := map[float64]int{11: 2011, 25: 2014}
	assert.False(t, FileImportingFilter(file, vol, nil, numberToYear))
}

func TestCheckSearchResultMatchIssueSearch(t *testing.T) {
	result := domain.Fingerprint{Series: "Saga", IssueNumber: domain.Single(3), Year: 2013, HasYear: true}
	vol := VolumeRef{Year: 2012}
	numberToYear := map[float64]int{3: 2013}
	got := CheckSearchResultMatch(nil, nil, result, "https://example.com/saga-3", vol, "Saga", "", nil, numberToYear, domain.Single(3))
	assert.True(t, got.Match, got.MatchIssue)

	got = CheckSearchResultMatch(nil, nil, result, "https://example.com/saga-3", vol, "Saga", "", nil, numberToYear, domain.Single(4))
	assert.False(t, got.Match)
	assert.Equal(t, "Issue numbers don't match", got.MatchIssue)
}

func TestCheckSearchResultMatchRangedIssueNumberUsesStartYear(t *testing.T) {
	// A release covering issues 11-25 but stamped with the range's later
	// year must be rejected: the year lookup keys off the range's first
	// issue, matching the volume's own printed year.
	result := domain.Fingerprint{Series: "Saga", IssueNumber: domain.Span(11, 25), Year: 2014, HasYear: true}
	vol := VolumeRef{Year: 2011}
	numberToYear := map[float64]int{11: 2011, 25: 2014}
	got := CheckSearchResultMatch(nil, nil, result, "https://example.com/saga-11-25", vol, "Saga", "", nil, numberToYear, domain.Span(11, 25))
	assert.False(t, got.Match)
	assert.Equal(t, "Year doesn't match", got.MatchIssue)
}
