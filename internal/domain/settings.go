// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Settings is the surface the core actually consumes; everything
// else is the surrounding collaborators' business.
type Settings struct {
	DownloadFolder string `toml:"downloadFolder" mapstructure:"downloadFolder"`

	ServicePreference []SourceKind `toml:"servicePreference" mapstructure:"servicePreference"`
	FormatPreference  []string     `toml:"formatPreference" mapstructure:"formatPreference"`

	RenameDownloadedFiles bool `toml:"renameDownloadedFiles" mapstructure:"renameDownloadedFiles"`

	VolumeFolderNaming    string `toml:"volumeFolderNaming" mapstructure:"volumeFolderNaming"`
	FileNaming            string `toml:"fileNaming" mapstructure:"fileNaming"`
	FileNamingEmpty       string `toml:"fileNamingEmpty" mapstructure:"fileNamingEmpty"`
	FileNamingSpecialVersion string `toml:"fileNamingSpecialVersion" mapstructure:"fileNamingSpecialVersion"`
	FileNamingVAI         string `toml:"fileNamingVai" mapstructure:"fileNamingVai"`

	VolumePadding int `toml:"volumePadding" mapstructure:"volumePadding"`
	IssuePadding  int `toml:"issuePadding" mapstructure:"issuePadding"`

	LongSpecialVersion bool `toml:"longSpecialVersion" mapstructure:"longSpecialVersion"`

	Convert            bool `toml:"convert" mapstructure:"convert"`
	ExtractIssueRanges bool `toml:"extractIssueRanges" mapstructure:"extractIssueRanges"`

	SeedingHandling        SeedingHandling `toml:"seedingHandling" mapstructure:"seedingHandling"`
	DeleteCompletedTorrents bool           `toml:"deleteCompletedTorrents" mapstructure:"deleteCompletedTorrents"`
}

// AllSourceKinds is the supported set a service_preference permutation
// must contain exactly once each.
var AllSourceKinds = []SourceKind{
	SourceMega, SourceMegaFolder, SourceMediaFire, SourceMediaFireFolder,
	SourceWeTransfer, SourcePixelDrain, SourcePixelDrainFolder,
	SourceDirect, SourceTorrent, SourceUsenet,
}

// DefaultSettings mirrors the documented defaults for every setting.
func DefaultSettings() Settings {
	return Settings{
		ServicePreference:     append([]SourceKind(nil), AllSourceKinds...),
		FormatPreference:      nil,
		RenameDownloadedFiles: true,
		VolumeFolderNaming:    "{series_name}/Volume {volume_number} ({year})",
		FileNaming:            "{series_name}/Volume {volume_number} ({year})/{series_name} {issue_number} ({year})",
		FileNamingEmpty:       "{series_name}/Volume {volume_number} ({year})/{series_name} {issue_number} ({year})",
		FileNamingSpecialVersion: "{series_name}/Volume {volume_number} ({year})/{series_name} {special_version} ({year})",
		FileNamingVAI:         "{series_name}/{series_name} Volume {issue_number} ({year})",
		VolumePadding:         2,
		IssuePadding:          3,
		LongSpecialVersion:    false,
		Convert:               false,
		ExtractIssueRanges:    true,
		SeedingHandling:       SeedingHandlingCopy,
		DeleteCompletedTorrents: false,
	}
}

// Validate enforces the invariants that apply to the settings surface.
// registeredFormats is the set of converter target formats known to the
// conversion subsystem; rootFolders is the set of currently configured
// library root folders (for the download-folder nesting check).
func (s Settings) Validate(registeredFormats map[string]bool, rootFolders []string) error {
	if strings.TrimSpace(s.DownloadFolder) == "" {
		return fmt.Errorf("download folder must be set")
	}
	for _, rf := range rootFolders {
		if isNestedPath(s.DownloadFolder, rf) || isNestedPath(rf, s.DownloadFolder) {
			return fmt.Errorf("download folder %q must not be inside or contain root folder %q", s.DownloadFolder, rf)
		}
	}

	if len(s.ServicePreference) != len(AllSourceKinds) {
		return fmt.Errorf("service_preference must be a permutation of the %d supported source kinds", len(AllSourceKinds))
	}
	seen := make(map[SourceKind]bool, len(s.ServicePreference))
	for _, k := range s.ServicePreference {
		seen[k] = true
	}
	for _, k := range AllSourceKinds {
		if !seen[k] {
			return fmt.Errorf("service_preference is missing required source kind %q", k)
		}
	}

	for _, f := range s.FormatPreference {
		if registeredFormats != nil && !registeredFormats[f] {
			return fmt.Errorf("format_preference entry %q is not a registered converter target", f)
		}
	}

	if s.VolumePadding < 1 || s.VolumePadding > 3 {
		return fmt.Errorf("volume_padding must be in [1,3], got %d", s.VolumePadding)
	}
	if s.IssuePadding < 1 || s.IssuePadding > 4 {
		return fmt.Errorf("issue_padding must be in [1,4], got %d", s.IssuePadding)
	}

	switch s.SeedingHandling {
	case SeedingHandlingComplete, SeedingHandlingCopy:
	default:
		return fmt.Errorf("seeding_handling must be %q or %q", SeedingHandlingComplete, SeedingHandlingCopy)
	}

	return nil
}

// isNestedPath reports whether child is inside (or equal to) parent.
func isNestedPath(child, parent string) bool {
	child = filepath.Clean(child)
	parent = filepath.Clean(parent)
	if child == parent {
		return true
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
