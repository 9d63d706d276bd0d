// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"regexp"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
)

var (
	tpbRe      = regexp.MustCompile(`(?i)\b(?:tpb|trade[\s\-_]?paper[\s\-_]?back)\b`)
	oneShotRe  = regexp.MustCompile(`(?i)\b(?:os|one[\s\-_]?shot)\b`)
	hardCoverRe = regexp.MustCompile(`(?i)\b(?:hc|hard[\s\-_]?cover)\b`)

	coverWordRe   = regexp.MustCompile(`(?i)\bcover\b`)
	coverCompactRe = regexp.MustCompile(`(?i)\bn\d+c(\d+)\b`)
	coverIFCRe     = regexp.MustCompile(`(?i)\b\d*i?fc\b`)

	annualWordRe = regexp.MustCompile(`(?i)annuals?`)
	plusAnnualRe = regexp.MustCompile(`(?i)(?:\+|plus)[\s._]?annuals?|annuals?[\s._]?(?:\+|plus)`)
)

// findSpecialVersion detects a TPB/one-shot/hard-cover token, returning its
// span so the issue-number search can avoid it. It does not detect COVER
// or METADATA, which are handled earlier in the pipeline.
func findSpecialVersion(filename string) (domain.SpecialVersion, span, bool) {
	type hit struct {
		sv  domain.SpecialVersion
		loc []int
	}
	var best *hit
	for _, c := range []struct {
		re *regexp.Regexp
		sv domain.SpecialVersion
	}{
		{tpbRe, domain.SpecialVersionTPB},
		{oneShotRe, domain.SpecialVersionOneShot},
		{hardCoverRe, domain.SpecialVersionHardCover},
	} {
		loc := c.re.FindStringIndex(filename)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best.loc[0] {
			best = &hit{sv: c.sv, loc: loc}
		}
	}
	if best == nil {
		return domain.SpecialVersionNormal, span{}, false
	}
	return best.sv, span{best.loc[0], best.loc[1]}, true
}

// findCover detects the COVER special version: a bare "cover" word not
// preceded by "no"/"hard" qualifiers, or the compact n<N>c<N> / (N)ifc
// encodings. Returns the matched span.
func findCover(filename string) (span, bool) {
	if loc := coverCompactRe.FindStringIndex(filename); loc != nil {
		return span{loc[0], loc[1]}, true
	}
	if loc := coverIFCRe.FindStringIndex(filename); loc != nil {
		return span{loc[0], loc[1]}, true
	}
	for _, loc := range coverWordRe.FindAllStringIndex(filename, -1) {
		before := strings.ToLower(strings.TrimRight(filename[:loc[0]], " "))
		if strings.HasSuffix(before, "no") || strings.HasSuffix(before, "no-") || strings.HasSuffix(before, "no_") {
			continue
		}
		if strings.HasSuffix(before, "hard") || strings.HasSuffix(before, "hard-") || strings.HasSuffix(before, "hard_") {
			continue
		}
		return span{loc[0], loc[1]}, true
	}
	return span{}, false
}

// isAnnual reports whether this is an annual: true when the basename or the
// parent folder holds an "annual(s)" token and no "+annual"/"plus annual"
// qualifier; a name with that qualifier, or with no annual token, does not
// count.
func isAnnual(basename, folder string) bool {
	matches := func(s string) bool {
		if plusAnnualRe.MatchString(s) {
			return true
		}
		return !annualWordRe.MatchString(s)
	}
	return !(matches(basename) && matches(folder))
}
