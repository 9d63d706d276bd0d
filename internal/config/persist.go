// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/naming"
)

// UpdateLogSettings rewrites the log-related keys in the on-disk config
// file in place, preserving every other line (comments included), and
// reloads them into c.
func (c *Config) UpdateLogSettings(level, path string, maxSize, maxBackups int) error {
	content, err := os.ReadFile(c.configPath)
	if err != nil {
		return errors.Wrap(err, "read config for update")
	}

	updated := updateLogSettingsInTOML(string(content), level, path, maxSize, maxBackups)
	if err := os.WriteFile(c.configPath, []byte(updated), 0o644); err != nil {
		return errors.Wrap(err, "write updated config")
	}

	c.LogLevel, c.LogPath, c.LogMaxSize, c.LogMaxBackups = level, path, maxSize, maxBackups
	return nil
}

var logKeyPattern = map[string]*regexp.Regexp{
	"logPath":       regexp.MustCompile(`(?m)^\s*#?\s*logPath\s*=.*$`),
	"logMaxSize":    regexp.MustCompile(`(?m)^\s*#?\s*logMaxSize\s*=.*$`),
	"logMaxBackups": regexp.MustCompile(`(?m)^\s*#?\s*logMaxBackups\s*=.*$`),
	"logLevel":      regexp.MustCompile(`(?m)^\s*#?\s*logLevel\s*=.*$`),
}

// updateLogSettingsInTOML replaces each log setting's line in content if
// one already exists (commented or not), appending it just before the
// first following `[section]` header otherwise. It never appends a new
// "# Log settings" block; every key lands in place.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	values := map[string]string{
		"logPath":       fmt.Sprintf("logPath = %q", path),
		"logMaxSize":    fmt.Sprintf("logMaxSize = %d", maxSize),
		"logMaxBackups": fmt.Sprintf("logMaxBackups = %d", maxBackups),
		"logLevel":      fmt.Sprintf("logLevel = %q", level),
	}

	for _, key := range []string{"logPath", "logMaxSize", "logMaxBackups", "logLevel"} {
		pattern := logKeyPattern[key]
		if pattern.MatchString(content) {
			content = pattern.ReplaceAllString(content, values[key])
			continue
		}
		content = insertBeforeFirstSection(content, values[key])
	}
	return content
}

var sectionHeader = regexp.MustCompile(`(?m)^\[`)

func insertBeforeFirstSection(content, line string) string {
	loc := sectionHeader.FindStringIndex(content)
	if loc == nil {
		return strings.TrimRight(content, "\n") + "\n" + line + "\n"
	}
	return content[:loc[0]] + line + "\n" + content[loc[0]:]
}

// namingValidationMocks is the set of representative naming.Context values
// every template is rendered against before being persisted: distinct
// issue numbers, a ranged issue number, a second volume, and the
// empty-slot case a file whose issue couldn't be resolved renders with.
// Two of these rendering to the same path means the template can't tell
// its own inputs apart.
var namingValidationMocks = []naming.Context{
	{SeriesName: "Mock Series", VolumeNumber: 1, Year: 1999, IssueNumber: domain.Single(1)},
	{SeriesName: "Mock Series", VolumeNumber: 1, Year: 1999, IssueNumber: domain.Single(2)},
	{SeriesName: "Mock Series", VolumeNumber: 2, Year: 2001, IssueNumber: domain.Single(1)},
	{SeriesName: "Mock Series", VolumeNumber: 1, Year: 1999, IssueNumber: domain.Span(1, 2)},
	{SeriesName: "Mock Series", VolumeNumber: 1, Year: 1999},
	{SeriesName: "Mock Series", VolumeNumber: 1, Year: 1999, SpecialVersion: domain.SpecialVersionTPB},
}

// UpdateNamingSettings validates every naming template against
// namingValidationMocks, rejecting the whole update with
// naming.ErrTemplateCollision without touching disk if any one of them
// produces colliding output for two distinct mocks. Templates are
// validated by rendering a mock fingerprint first: this is the only path
// through which a naming template ever reaches the config file.
func (c *Config) UpdateNamingSettings(s domain.Settings) error {
	pad := naming.Padding{
		VolumeWidth:        s.VolumePadding,
		IssueWidth:         s.IssuePadding,
		LongSpecialVersion: s.LongSpecialVersion,
	}

	templates := []struct {
		key  string
		tmpl naming.Template
	}{
		{"volumeFolderNaming", naming.Template{Pattern: s.VolumeFolderNaming}},
		{"fileNaming", naming.Template{Pattern: s.FileNaming}},
		{"fileNamingEmpty", naming.Template{Pattern: s.FileNamingEmpty}},
		{"fileNamingSpecialVersion", naming.Template{Pattern: s.FileNamingSpecialVersion}},
		{"fileNamingVai", naming.Template{Pattern: s.FileNamingVAI}},
	}
	for _, t := range templates {
		if err := naming.ValidateTemplate(t.tmpl, namingValidationMocks, pad); err != nil {
			return errors.Wrapf(err, "%s", t.key)
		}
	}

	content, err := os.ReadFile(c.configPath)
	if err != nil {
		return errors.Wrap(err, "read config for update")
	}

	updated := updateNamingSettingsInTOML(string(content), s)
	if err := os.WriteFile(c.configPath, []byte(updated), 0o644); err != nil {
		return errors.Wrap(err, "write updated config")
	}

	c.Settings.VolumeFolderNaming = s.VolumeFolderNaming
	c.Settings.FileNaming = s.FileNaming
	c.Settings.FileNamingEmpty = s.FileNamingEmpty
	c.Settings.FileNamingSpecialVersion = s.FileNamingSpecialVersion
	c.Settings.FileNamingVAI = s.FileNamingVAI
	c.Settings.VolumePadding = s.VolumePadding
	c.Settings.IssuePadding = s.IssuePadding
	c.Settings.LongSpecialVersion = s.LongSpecialVersion
	return nil
}

var namingKeyPattern = map[string]*regexp.Regexp{
	"volumeFolderNaming":       regexp.MustCompile(`(?m)^\s*#?\s*volumeFolderNaming\s*=.*$`),
	"fileNaming":               regexp.MustCompile(`(?m)^\s*#?\s*fileNaming\s*=.*$`),
	"fileNamingEmpty":          regexp.MustCompile(`(?m)^\s*#?\s*fileNamingEmpty\s*=.*$`),
	"fileNamingSpecialVersion": regexp.MustCompile(`(?m)^\s*#?\s*fileNamingSpecialVersion\s*=.*$`),
	"fileNamingVai":            regexp.MustCompile(`(?m)^\s*#?\s*fileNamingVai\s*=.*$`),
	"volumePadding":            regexp.MustCompile(`(?m)^\s*#?\s*volumePadding\s*=.*$`),
	"issuePadding":             regexp.MustCompile(`(?m)^\s*#?\s*issuePadding\s*=.*$`),
	"longSpecialVersion":       regexp.MustCompile(`(?m)^\s*#?\s*longSpecialVersion\s*=.*$`),
}

var namingKeyOrder = []string{
	"volumeFolderNaming", "fileNaming", "fileNamingEmpty",
	"fileNamingSpecialVersion", "fileNamingVai",
	"volumePadding", "issuePadding", "longSpecialVersion",
}

func updateNamingSettingsInTOML(content string, s domain.Settings) string {
	values := map[string]string{
		"volumeFolderNaming":       fmt.Sprintf("volumeFolderNaming = %q", s.VolumeFolderNaming),
		"fileNaming":               fmt.Sprintf("fileNaming = %q", s.FileNaming),
		"fileNamingEmpty":          fmt.Sprintf("fileNamingEmpty = %q", s.FileNamingEmpty),
		"fileNamingSpecialVersion": fmt.Sprintf("fileNamingSpecialVersion = %q", s.FileNamingSpecialVersion),
		"fileNamingVai":            fmt.Sprintf("fileNamingVai = %q", s.FileNamingVAI),
		"volumePadding":            fmt.Sprintf("volumePadding = %d", s.VolumePadding),
		"issuePadding":             fmt.Sprintf("issuePadding = %d", s.IssuePadding),
		"longSpecialVersion":       fmt.Sprintf("longSpecialVersion = %t", s.LongSpecialVersion),
	}

	for _, key := range namingKeyOrder {
		pattern := namingKeyPattern[key]
		if pattern.MatchString(content) {
			content = pattern.ReplaceAllString(content, values[key])
			continue
		}
		content = insertBeforeFirstSection(content, values[key])
	}
	return content
}
