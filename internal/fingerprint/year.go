// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"regexp"
	"strconv"
)

// yearRe recognizes every year form the extractor accepts. Go's RE2 engine has
// no lookaround, so each form is its own alternative with its own capture
// group rather than a single lookahead-guarded pattern; findYears below
// picks whichever group matched.
var yearRe = regexp.MustCompile(
	`\((\d{4})\)` + // (YYYY)
		`|\([A-Za-z]+\.?\s+(\d{4})\)` + // (Month YYYY)
		`|--(\d{4})--` + // --YYYY--
		`|__(\d{4})__` +
		`|,\s(\d{4})\s{3}` + // , YYYY   (three trailing spaces)
		`|\((\d{2})-(\d{4})\)` + // (MM-YYYY)
		`|(\d{4})-\d{2}-\d{2}` + // YYYY-MM-DD
		`|(\d{4})[\s.\-_]Edition` + // YYYY Edition
		`|(\d{4})-\d{4}\s{3}\d{4}` + // degenerate YYYY-YYYY   YYYY
		`|\b(?:\d{2}-){1,2}(\d{4})\b` + // NN-NN-YYYY
		`|\b(\d{4})(?:-\d{2}){1,2}\b`, // YYYY-NN[-NN]
)

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// yearMatch is one recognized year occurrence.
type yearMatch struct {
	span span
	year int
}

// findYears locates every year occurrence in s, in the order they appear.
func findYears(s string) []yearMatch {
	matches := yearRe.FindAllStringSubmatchIndex(s, -1)
	out := make([]yearMatch, 0, len(matches))
	for _, m := range matches {
		// group 6/7 is the MM-YYYY form: the year is group 7.
		var yearStr string
		for g := 1; g < len(m)/2; g++ {
			start, end := m[2*g], m[2*g+1]
			if start < 0 || g == 6 {
				continue
			}
			yearStr = s[start:end]
			break
		}
		if yearStr == "" {
			continue
		}
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			continue
		}
		out = append(out, yearMatch{span: span{m[0], m[1]}, year: y})
	}
	return out
}

// fixYear corrects a year outside [1900,2100) whose middle two digits are
// transposed (2204 -> 2024, 1890 -> 1980); years already in range, or not
// exactly 4 digits, pass through unchanged.
func fixYear(year int) int {
	if year >= 1900 && year < 2100 {
		return year
	}
	s := strconv.Itoa(year)
	if len(s) != 4 {
		return year
	}
	fixed := string([]byte{s[0], s[2], s[1], s[3]})
	v, err := strconv.Atoi(fixed)
	if err != nil {
		return year
	}
	return v
}
