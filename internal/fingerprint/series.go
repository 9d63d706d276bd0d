// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"regexp"
	"strings"
)

var (
	leadingNumberingRe = regexp.MustCompile(`^\d+\.\s+|^\d+\s{3}`)
	multiSpaceRe        = regexp.MustCompile(`\s{2,}`)
	trailingSepRe       = regexp.MustCompile(`[\s,\-_]+$`)
)

// cleanSeriesName applies the series name's final cleanup: strip trailing
// separators, collapse whitespace, replace -/_ with spaces, and trim
// leading numbering like "1. " or "01   ".
func cleanSeriesName(s string) string {
	s = leadingNumberingRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = trailingSepRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// computeSeries computes the series name: the text to the
// left of the earliest of the chosen spans, falling back to the folder
// name (up to its own earliest span) and then the grandparent folder.
func computeSeries(filename string, filenameSpans []span, folder string, folderSpans []span, grandparent string) string {
	if left := leftOfEarliest(filename, filenameSpans); strings.TrimSpace(cleanSeriesName(left)) != "" {
		return cleanSeriesName(left)
	}
	if left := leftOfEarliest(folder, folderSpans); strings.TrimSpace(cleanSeriesName(left)) != "" {
		return cleanSeriesName(left)
	}
	return cleanSeriesName(grandparent)
}

func leftOfEarliest(s string, spans []span) string {
	min := len(s)
	for _, sp := range spans {
		if sp.start >= 0 && sp.start < min {
			min = sp.start
		}
	}
	if min > len(s) {
		min = len(s)
	}
	return s[:min]
}
