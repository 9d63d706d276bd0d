// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/pkg/romannum"
)

var (
	volumeRe       = regexp.MustCompile(`(?i)\b(?:v(?:ol|olume)?)(?:\.\s|[.\-\s])?(\d+\s?-\s?\d+|\d+|[ivx]{1,4})\b`)
	volumeFolderRe = regexp.MustCompile(`(?i)\b(?:v(?:ol|olume)?)(?:\.\s|[.\-\s])?(\d+\s?-\s?\d+|\d+|[ivx]{1,4})\b|^(\d+)$`)
)

// processVolumeNumber converts a matched volume-number token (digit, digit
// range, or roman numeral) into a domain.IntNumber.
func processVolumeNumber(raw string) domain.IntNumber {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NoIntNumber
	}
	if v, ok := romannum.Decode(raw); ok {
		return domain.SingleInt(v)
	}
	if strings.Contains(raw, "-") {
		parts := strings.SplitN(raw, "-", 2)
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errA == nil && errB == nil {
			return domain.SpanInt(a, b)
		}
		return domain.NoIntNumber
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return domain.NoIntNumber
	}
	return domain.SingleInt(v)
}

// volumeFind is a found volume-number occurrence with its match span.
type volumeFind struct {
	number domain.IntNumber
	span   span
}

func findVolumeInFilename(s string) (volumeFind, bool) {
	loc := volumeRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return volumeFind{}, false
	}
	raw := s[loc[2]:loc[3]]
	return volumeFind{number: processVolumeNumber(raw), span: span{loc[0], loc[1]}}, true
}

func findVolumeInFolder(folder string) (volumeFind, bool) {
	loc := volumeFolderRe.FindStringSubmatchIndex(folder)
	if loc == nil {
		return volumeFind{}, false
	}
	var raw string
	if loc[2] >= 0 {
		raw = folder[loc[2]:loc[3]]
	} else if len(loc) > 4 && loc[4] >= 0 {
		raw = folder[loc[4]:loc[5]]
	}
	return volumeFind{number: processVolumeNumber(raw), span: span{loc[0], loc[1]}}, true
}
