// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fingerprint implements the deterministic title/filename
// extractor: a free-form string goes in, a domain.Fingerprint
// comes out.
package fingerprint

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	russianVolumeRe   = regexp.MustCompile(`(?i)Томa?[\s.]?(\d+)`)
	russianVolumeRe2  = regexp.MustCompile(`(?i)(\d+)[\s.]?Томa?`)
	chineseVolumeRe   = regexp.MustCompile(`第(\d+)(?:卷|册)`)
	chineseVolumeRe2  = regexp.MustCompile(`(?:卷|册)(\d+)`)
	koreanVolumeRe    = regexp.MustCompile(`제?(\d+)권`)
	japaneseVolumeRe  = regexp.MustCompile(`(\d+)巻`)
)

// normalizeString fixes common issues in strings coming from online
// sources: percent-decoding, mis-encoded parens, curly quotes, en-dashes,
// CJK/Cyrillic/Korean volume markers, and `+` used as a space.
func normalizeString(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		s = decoded
	}
	s = strings.ReplaceAll(s, "_28", "(")
	s = strings.ReplaceAll(s, "_29", ")")
	s = strings.ReplaceAll(s, "–", "-") // en-dash
	s = strings.ReplaceAll(s, "’", "'") // right single quote
	s = strings.ReplaceAll(s, "‘", "'")
	s = strings.ReplaceAll(s, "“", "\"")
	s = strings.ReplaceAll(s, "”", "\"")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "+", " ")

	if strings.Contains(s, "Том") {
		s = russianVolumeRe.ReplaceAllString(s, "Volume $1")
		s = russianVolumeRe2.ReplaceAllString(s, "Volume $1")
	}
	if strings.ContainsAny(s, "第卷册") {
		s = chineseVolumeRe.ReplaceAllString(s, "Volume $1")
		s = chineseVolumeRe2.ReplaceAllString(s, "Volume $1")
	}
	if strings.Contains(s, "권") {
		s = koreanVolumeRe.ReplaceAllString(s, "Volume $1")
	}
	if strings.Contains(s, "巻") {
		s = japaneseVolumeRe.ReplaceAllString(s, "Volume $1")
	}

	return s
}

// stripBalancedRuns blanks out balanced (...)/[...] /{...} runs with
// spaces rather than deleting them, so that later regex match offsets
// still line up with the original string.
func stripBalancedRuns(s string) string {
	out := []rune(s)
	stack := make([]struct {
		open  rune
		start int
	}, 0, 4)

	pairs := map[rune]rune{'(': ')', '[': ']', '{': '}'}
	closing := map[rune]rune{')': '(', ']': '[', '}': '{'}

	for i, r := range out {
		switch r {
		case '(', '[', '{':
			stack = append(stack, struct {
				open  rune
				start int
			}{r, i})
		case ')', ']', '}':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if pairs[top.open] == r && closing[r] == top.open {
				for j := top.start; j <= i; j++ {
					out[j] = ' '
				}
				stack = stack[:len(stack)-1]
			}
		}
	}
	return string(out)
}

// isImageFile reports whether path has one of the recognized image
// extensions (case-insensitive).
func isImageFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var imageExtensions = []string{".png", ".jpeg", ".jpg", ".webp", ".gif"}

var containerExtensions = []string{
	".cbz", ".zip", ".rar", ".cbr", ".tar.gz",
	".7zip", ".7z", ".cb7", ".cbt", ".epub", ".pdf",
}

var metadataExtensions = []string{".xml", ".json"}

var metadataFilenames = map[string]bool{
	"cvinfo.xml":    true,
	"comicinfo.xml": true,
	"series.json":   true,
}

// ScannableExtensions is the union of image, container, and metadata
// extensions the file scanner walks for.
func ScannableExtensions() []string {
	out := make([]string, 0, len(imageExtensions)+len(containerExtensions)+len(metadataExtensions))
	out = append(out, imageExtensions...)
	out = append(out, containerExtensions...)
	out = append(out, metadataExtensions...)
	return out
}

func isMetadataFilename(basename string) bool {
	return metadataFilenames[strings.ToLower(basename)]
}

func stripKnownExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range containerExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
