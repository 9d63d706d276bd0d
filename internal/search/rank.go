// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"sort"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// rankReleases sorts releases best-first by the fixed four-key ranking
// order: match status, word-set distance, volume/year fit, then
// issue-number fit (the last key only matters for an issue search).
func rankReleases(releases []domain.Release, queryTitle string, volumeNumber, volumeYear int, calculatedIssueNumber domain.Number, numberToYear map[float64]int) {
	titleWords := wordSet(queryTitle)

	sort.SliceStable(releases, func(i, j int) bool {
		a, b := releases[i], releases[j]
		ka := rankKey(a, titleWords, volumeNumber, volumeYear, calculatedIssueNumber, numberToYear)
		kb := rankKey(b, titleWords, volumeNumber, volumeYear, calculatedIssueNumber, numberToYear)
		for n := range ka {
			if ka[n] != kb[n] {
				return ka[n] < kb[n]
			}
		}
		return false
	})
}

// rankKey computes the 4 ascending-sort numbers for one release.
func rankKey(r domain.Release, titleWords map[string]bool, volumeNumber, volumeYear int, calculatedIssueNumber domain.Number, numberToYear map[float64]int) [4]float64 {
	var key [4]float64

	if !r.Match {
		key[0] = 1
	}

	key[1] = float64(wordSetDistance(r.Fingerprint.Series, titleWords))
	key[2] = volumeYearFit(r, volumeNumber, volumeYear, numberToYear)

	if calculatedIssueNumber.IsSet() {
		key[3] = issueNumberFit(r, calculatedIssueNumber)
	}

	return key
}

// wordSet splits a title into its whitespace-delimited tokens, the same
// way the query string itself is built.
func wordSet(title string) map[string]bool {
	words := strings.Fields(title)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// wordSetDistance counts tokens in series not present in titleWords: the
// more of the result's own title survives outside of what was searched
// for, the less likely it's actually the same series.
func wordSetDistance(series string, titleWords map[string]bool) int {
	n := 0
	for _, w := range strings.Fields(series) {
		if !titleWords[w] {
			n++
		}
	}
	return n
}

// volumeYearFit scores 0 (best) to 3 (worst): a direct volume-number hit
// saves 1, a direct issue-year hit (the release's year matches the exact
// release year of the issue it covers) saves 2, and failing that a fuzzy
// volume-year hit (within a year of the volume's own year) saves 1.
func volumeYearFit(r domain.Release, volumeNumber, volumeYear int, numberToYear map[float64]int) float64 {
	score := 3.0

	fp := r.Fingerprint
	if fp.VolumeNumber.IsSet() && !fp.VolumeNumber.IsRange() && fp.VolumeNumber.Value() == volumeNumber {
		score -= 1
	}

	issueYearDirect := false
	if fp.HasYear && r.CoveredIssues.IsSet() {
		if year, ok := numberToYear[r.CoveredIssues.Value()]; ok && year == fp.Year {
			issueYearDirect = true
		}
	}
	switch {
	case issueYearDirect:
		score -= 2
	case fp.HasYear && volumeYear != 0 && abs(fp.Year-volumeYear) <= 1:
		score -= 1
	}

	if score < 0 {
		score = 0
	}
	return score
}

// issueNumberFit scores an issue search's candidates: 0 for a direct hit,
// a fractional value inside a range, 2 for a special version with no
// issue number at all, 3 otherwise.
func issueNumberFit(r domain.Release, calculatedIssueNumber domain.Number) float64 {
	fp := r.Fingerprint
	switch {
	case fp.IssueNumber.IsSet() && !fp.IssueNumber.IsRange() && fp.IssueNumber.Value() == calculatedIssueNumber.Value():
		return 0
	case fp.IssueNumber.IsRange() && fp.IssueNumber.Contains(calculatedIssueNumber.Value()):
		return 1 - 1/fp.IssueNumber.RangeSpan()
	case !fp.IssueNumber.IsSet() && fp.SpecialVersion != domain.SpecialVersionNormal:
		return 2
	default:
		return 3
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
