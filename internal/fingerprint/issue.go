// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// numSnippet is the issue-number grammar: decimal, integer
// with up to a 3-letter suffix, half/quarter glyphs, leading minus.
const numSnippet = `-?(?:\d+(?:\.\d{1,2}|\.?[a-zA-Z]{1,3}|[½¼])?|[½¼])`

type issuePattern struct {
	re       *regexp.Regexp
	twoGroup bool // pattern carries a second number forming a range
}

// Patterns are tried in this order; P6 (bare leading number) is excluded
// from the "before volume position" pass, matching the source's
// pos_options split.
var (
	issueP1 = issuePattern{re: regexp.MustCompile(`\(_(` + numSnippet + `)\)`)}
	issueP2 = issuePattern{re: regexp.MustCompile(`(?i)\b(?:c|chapter|issues?|books?|no)[\s\-._]?(?:#\s*)?(` + numSnippet + `)(?:[\s.]?-[\s.]?(` + numSnippet + `))?\b`), twoGroup: true}
	issueP3 = issuePattern{re: regexp.MustCompile(`(?i)(` + numSnippet + `)[\s\-._]?\(?[\s\-._]?of[\s\-._]?(` + numSnippet + `)\)?`), twoGroup: true}
	issueP4 = issuePattern{re: regexp.MustCompile(`(` + numSnippet + `)[\s.]?-[\s.]?(` + numSnippet + `)`), twoGroup: true}
	issueP5 = issuePattern{re: regexp.MustCompile(`#\s*(` + numSnippet + `)`)}
	issueP6 = issuePattern{re: regexp.MustCompile(`(?:^|[\s._])(` + numSnippet + `)(?:[\s._]|$)`)}
	issueP7 = regexp.MustCompile(`^(` + numSnippet + `)$`)
)

var orderedPatterns = []issuePattern{issueP1, issueP2, issueP3, issueP4, issueP5, issueP6}
var beforeVolumePatterns = []issuePattern{issueP1, issueP2, issueP3, issueP4, issueP5}

// rejectSuffixRe screens out numeric matches that are actually ordinals or
// size units ("120th", "4 gb") rather than issue numbers.
var rejectSuffixRe = regexp.MustCompile(`(?i)^(?:th|rd|st|nd|\s?(?:gb|mb))`)

type foundIssue struct {
	number domain.Number
	span   span
}

// findIssueNumberIn searches text for the first pattern (in order) that
// yields any valid match, honoring the year/special-version exclusion
// spans and the end-in-digit / earliest-in-string tie-break.
func findIssueNumberIn(text string, patterns []issuePattern, yearSpans []span, specialSpan span, hasSpecial bool) (foundIssue, bool) {
	for _, p := range patterns {
		locs := p.re.FindAllStringSubmatchIndex(text, -1)
		if len(locs) == 0 {
			continue
		}

		type candidate struct {
			num  domain.Number
			span span
		}
		var candidates []candidate

		for _, loc := range locs {
			g1s, g1e := loc[2], loc[3]
			if g1s < 0 {
				continue
			}
			matchSpan := span{loc[0], loc[1]}

			// Reject ordinal/unit suffix false positives.
			after := text[g1e:]
			if rejectSuffixRe.MatchString(after) {
				continue
			}
			// Reject possessive-looking numbers ('80s).
			if g1s > 0 && text[g1s-1] == '\'' {
				continue
			}

			raw1 := text[g1s:g1e]
			v1, ok := calcFloatIssueNumber(raw1)
			if !ok {
				continue
			}

			num := domain.Single(v1)
			if p.twoGroup && len(loc) > 4 && loc[4] >= 0 {
				raw2 := text[loc[4]:loc[5]]
				if v2, ok2 := calcFloatIssueNumber(raw2); ok2 {
					num = domain.Span(v1, v2)
				}
			}

			// Exclude spans overlapping any year span or the special-version span.
			overlapsYear := false
			for _, ys := range yearSpans {
				if matchSpan.overlaps(ys) {
					overlapsYear = true
					break
				}
			}
			if overlapsYear {
				continue
			}
			if hasSpecial && matchSpan.overlaps(specialSpan) {
				continue
			}

			candidates = append(candidates, candidate{num: num, span: matchSpan})
		}

		if len(candidates) == 0 {
			continue
		}

		// Tie-break: prefer match whose text ends in a digit, then earliest start.
		best := candidates[0]
		bestEndsDigit := endsInDigit(text[best.span.start:best.span.end])
		for _, c := range candidates[1:] {
			endsDigit := endsInDigit(text[c.span.start:c.span.end])
			if endsDigit && !bestEndsDigit {
				best, bestEndsDigit = c, true
				continue
			}
			if endsDigit == bestEndsDigit && c.span.start < best.span.start {
				best = c
			}
		}
		return foundIssue{number: best.num, span: best.span}, true
	}
	return foundIssue{}, false
}

func endsInDigit(s string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return last >= '0' && last <= '9'
}

// findIssueNumberLastResort applies `^N$` to the fully-cleaned, trimmed
// filename/foldername as a final fallback.
func findIssueNumberLastResort(cleaned string) (domain.Number, bool) {
	trimmed := strings.TrimSpace(cleaned)
	m := issueP7.FindStringSubmatch(trimmed)
	if m == nil {
		return domain.NoNumber, false
	}
	v, ok := calcFloatIssueNumber(m[1])
	if !ok {
		return domain.NoNumber, false
	}
	return domain.Single(v), true
}

var alphabetIndex = func() map[byte]string {
	m := make(map[byte]string, 26)
	for i := 0; i < 26; i++ {
		m[byte('a'+i)] = zeroPad(i + 1)
	}
	return m
}()

func zeroPad(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

// calcFloatIssueNumber converts an issue-number token to its float
// representation: plain decimals pass straight through; half/quarter
// glyphs map to .5/.3; a letter suffix maps to its two-digit alphabet
// index (a=01..z=26); the whole thing may be negated.
func calcFloatIssueNumber(raw string) (float64, bool) {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, true
	}

	s := normalizeNumberToken(raw)
	if s == "" {
		return 0, false
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	var out strings.Builder
	dotWritten := false
	wroteAny := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			out.WriteRune(r)
			wroteAny = true
		case r == '½':
			if !dotWritten {
				out.WriteByte('.')
				dotWritten = true
			}
			out.WriteByte('5')
			wroteAny = true
		case r == '¼':
			if !dotWritten {
				out.WriteByte('.')
				dotWritten = true
			}
			out.WriteByte('3')
			wroteAny = true
		case r >= 'a' && r <= 'z':
			if !dotWritten {
				out.WriteByte('.')
				dotWritten = true
			}
			out.WriteString(alphabetIndex[byte(r)])
			wroteAny = true
		case r >= 'A' && r <= 'Z':
			if !dotWritten {
				out.WriteByte('.')
				dotWritten = true
			}
			out.WriteString(alphabetIndex[byte(r-'A'+'a')])
			wroteAny = true
		}
	}
	if !wroteAny {
		return 0, false
	}
	str := out.String()
	if negative {
		str = "-" + str
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeNumberToken mirrors helpers.normalize_number: commas become
// dots, '?' becomes '0', trailing dots/whitespace trimmed, lowercased.
func normalizeNumberToken(s string) string {
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, "?", "0")
	s = strings.TrimRight(s, ".")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}
