// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package naming renders file and folder names from user-configurable
// templates plus a closed set of placeholders.
package naming

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/pkg/pathutil"
)

// Context is the full set of values a template may reference. Fields not
// applicable to the template being rendered are left zero and render as
// the empty string.
type Context struct {
	SeriesName    string
	VolumeNumber  int
	ComicvineID   string
	Year          int
	Publisher     string

	SpecialVersion domain.SpecialVersion

	IssueComicvineID  string
	IssueNumber       domain.Number
	IssueTitle        string
	IssueReleaseDate  string
	IssueReleaseYear  int
}

// CleanSeriesName strips characters that read awkwardly in a bare
// filesystem name: the colon-delimited subtitle separator and repeated
// whitespace collapse, keeping the regular SeriesName for display use.
func CleanSeriesName(series string) string {
	cleaned := strings.ReplaceAll(series, ":", " -")
	return strings.Join(strings.Fields(cleaned), " ")
}

var filenameCleaner = regexp.MustCompile(`[<>:"|?*\x00]`)

// Padding controls the zero-pad width of rendered numbers, configured by
// the user (1-3 for volume numbers, 1-4 for issue numbers).
type Padding struct {
	VolumeWidth int
	IssueWidth  int

	// LongSpecialVersion selects "Hard-Cover" over "HC" in the rendered
	// special_version placeholder, per the file_naming_special_version
	// long_special_version setting.
	LongSpecialVersion bool
}

// Template is one of the five user-configurable naming templates.
type Template struct {
	Pattern string
}

func padInt(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func padFloat(n float64, width int) string {
	if n == float64(int64(n)) {
		return padInt(int(n), width)
	}
	return fmt.Sprintf("%0*.1f", width+2, n)
}

// renderIssueNumber formats ctx.IssueNumber as "a" or "a-b" with both
// sides zero-padded to width.
func renderIssueNumber(n domain.Number, width int) string {
	if !n.IsSet() {
		return ""
	}
	if !n.IsRange() {
		return padFloat(n.Value(), width)
	}
	lo, hi := n.Bounds()
	return padFloat(lo, width) + "-" + padFloat(hi, width)
}

func placeholderValues(ctx Context, pad Padding) map[string]string {
	m := map[string]string{
		"series_name":       ctx.SeriesName,
		"clean_series_name": CleanSeriesName(ctx.SeriesName),
		"volume_number":     "",
		"comicvine_id":      ctx.ComicvineID,
		"year":              "",
		"publisher":         ctx.Publisher,
		"special_version":   ctx.SpecialVersion.Label(pad.LongSpecialVersion),
		"issue_comicvine_id": ctx.IssueComicvineID,
		"issue_number":      renderIssueNumber(ctx.IssueNumber, pad.IssueWidth),
		"issue_title":       ctx.IssueTitle,
		"issue_release_date": ctx.IssueReleaseDate,
		"issue_release_year": "",
	}
	if ctx.VolumeNumber != 0 {
		m["volume_number"] = padInt(ctx.VolumeNumber, pad.VolumeWidth)
	}
	if ctx.Year != 0 {
		m["year"] = fmt.Sprintf("%d", ctx.Year)
	}
	if ctx.IssueReleaseYear != 0 {
		m["issue_release_year"] = fmt.Sprintf("%d", ctx.IssueReleaseYear)
	}
	return m
}

var placeholderRegex = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render expands t.Pattern against ctx, sanitizing every path component
// for filesystem safety. The result may contain "/" to express subfolders;
// each segment between slashes is sanitized independently.
func Render(t Template, ctx Context, pad Padding) string {
	values := placeholderValues(ctx, pad)
	expanded := placeholderRegex.ReplaceAllStringFunc(t.Pattern, func(m string) string {
		key := m[1 : len(m)-1]
		return values[key]
	})

	segments := strings.Split(expanded, "/")
	for i, seg := range segments {
		seg = filenameCleaner.ReplaceAllString(seg, "")
		segments[i] = pathutil.SanitizePathSegment(strings.TrimRight(seg, ". "))
	}
	return path.Join(segments...)
}

// Templates is the set of five user-configurable templates.
type Templates struct {
	VolumeFolder      Template
	File              Template
	FileEmpty         Template
	FileSpecialVersion Template
	FileVAI           Template
}

// DefaultTemplates matches the documented defaults.
func DefaultTemplates() Templates {
	return Templates{
		VolumeFolder:      Template{Pattern: "{series_name}/Volume {volume_number} ({year})"},
		File:              Template{Pattern: "{series_name} {volume_number} ({year})/{series_name} {issue_number} ({year})"},
		FileEmpty:         Template{Pattern: "{series_name} {volume_number} ({year})/{series_name} {issue_number} ({year})"},
		FileSpecialVersion: Template{Pattern: "{series_name} {volume_number} ({year})/{series_name} {special_version} ({year})"},
		FileVAI:           Template{Pattern: "{series_name} Volume {issue_number} ({year})"},
	}
}

// SelectFileTemplate picks which of the file templates applies, given a
// volume's special version and whether an issue number (or covered range)
// could be resolved for the file being named. issueResolved false is the
// "empty-slot name" case: a download whose issue/covered-range couldn't be
// determined falls back to FileEmpty rather than rendering a template with
// a blank issue_number placeholder.
func (t Templates) SelectFileTemplate(sv domain.SpecialVersion, issueResolved bool) Template {
	if !issueResolved {
		return t.FileEmpty
	}
	switch sv {
	case domain.SpecialVersionTPB, domain.SpecialVersionOneShot, domain.SpecialVersionHardCover:
		return t.FileSpecialVersion
	case domain.SpecialVersionVolumeAsIssue:
		return t.FileVAI
	default:
		return t.File
	}
}

// ErrTemplateCollision is returned by ValidateTemplate when two distinct
// mock inputs render to the same output path.
var ErrTemplateCollision = errors.New("naming template produces colliding output for distinct inputs")

// ValidateTemplate renders t against every ctx in mocks and fails if any
// two distinct contexts collide on the same rendered path — templates are
// validated by rendering a mock fingerprint first.
func ValidateTemplate(t Template, mocks []Context, pad Padding) error {
	seen := make(map[string]int, len(mocks))
	for i, ctx := range mocks {
		rendered := Render(t, ctx, pad)
		if prev, ok := seen[rendered]; ok && prev != i {
			return errors.Wrapf(ErrTemplateCollision, "mock %d and %d both render %q", prev, i, rendered)
		}
		seen[rendered] = i
	}
	return nil
}
