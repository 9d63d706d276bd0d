// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the value types shared across every pipeline
// component: fingerprints, releases, download state, and the settings
// surface the core consumes.
package domain

// SpecialVersion tags the shape of a volume or a single parsed filename.
type SpecialVersion string

const (
	// SpecialVersionNormal is a plain numbered-issue volume.
	SpecialVersionNormal SpecialVersion = ""
	SpecialVersionTPB    SpecialVersion = "tpb"
	SpecialVersionOneShot SpecialVersion = "one-shot"
	SpecialVersionHardCover SpecialVersion = "hard-cover"
	// SpecialVersionVolumeAsIssue marks a volume where each issue is
	// itself called "Volume N".
	SpecialVersionVolumeAsIssue SpecialVersion = "volume-as-issue"
	// SpecialVersionCover marks an image file that is a cover, not an issue page.
	SpecialVersionCover SpecialVersion = "cover"
	// SpecialVersionMetadata marks a metadata file (ComicInfo.xml, series.json, ...).
	SpecialVersionMetadata SpecialVersion = "metadata"
)

// IsSet reports whether v carries an explicit special version.
func (v SpecialVersion) IsSet() bool {
	return v != SpecialVersionNormal
}

var shortSVMapping = map[SpecialVersion]string{
	SpecialVersionHardCover: "HC",
	SpecialVersionOneShot:   "OS",
	SpecialVersionTPB:       "TPB",
	SpecialVersionCover:     "Cover",
}

var fullSVMapping = map[SpecialVersion]string{
	SpecialVersionHardCover: "Hard-Cover",
	SpecialVersionOneShot:   "One-Shot",
	SpecialVersionTPB:       "TPB",
	SpecialVersionCover:     "Cover",
}

// Label renders the special version for use in a filename, honoring the
// long_special_version setting.
func (v SpecialVersion) Label(long bool) string {
	if long {
		if s, ok := fullSVMapping[v]; ok {
			return s
		}
		return ""
	}
	if s, ok := shortSVMapping[v]; ok {
		return s
	}
	return ""
}

// BlocklistReason explains why a link/article was blocklisted.
type BlocklistReason string

const (
	BlocklistReasonLinkBroken         BlocklistReason = "Link broken"
	BlocklistReasonSourceNotSupported BlocklistReason = "Source not supported"
	BlocklistReasonNoWorkingLinks     BlocklistReason = "No supported or working links"
	BlocklistReasonAddedByUser        BlocklistReason = "Added by user"
)

// DownloadState is the lifecycle state of a Download.
type DownloadState string

const (
	DownloadStateQueued      DownloadState = "queued"
	DownloadStateDownloading DownloadState = "downloading"
	DownloadStateSeeding     DownloadState = "seeding"
	DownloadStateImporting   DownloadState = "importing"
	DownloadStateFailed      DownloadState = "failed"
	DownloadStateCanceled    DownloadState = "canceled"
	DownloadStateShutdown    DownloadState = "shutting down"
)

// IsTerminal reports whether the state requires no further queue action.
func (s DownloadState) IsTerminal() bool {
	switch s {
	case DownloadStateFailed, DownloadStateCanceled, DownloadStateShutdown:
		return true
	default:
		return false
	}
}

// SeedingHandling controls what happens to a torrent once the external
// client reports it as complete.
type SeedingHandling string

const (
	SeedingHandlingComplete SeedingHandling = "complete"
	SeedingHandlingCopy     SeedingHandling = "copy"
)

// SourceKind identifies the hosting technology behind a download link.
type SourceKind string

const (
	SourceMega           SourceKind = "mega"
	SourceMegaFolder     SourceKind = "mega_folder"
	SourceMediaFire      SourceKind = "mediafire"
	SourceMediaFireFolder SourceKind = "mediafire_folder"
	SourceWeTransfer     SourceKind = "wetransfer"
	SourcePixelDrain     SourceKind = "pixeldrain"
	SourcePixelDrainFolder SourceKind = "pixeldrain_folder"
	SourceDirect         SourceKind = "direct"
	SourceTorrent        SourceKind = "torrent"
	SourceUsenet         SourceKind = "usenet"
)

// IsFolder reports whether the source kind resolves to a multi-file folder
// rather than a single file.
func (k SourceKind) IsFolder() bool {
	switch k {
	case SourceMegaFolder, SourceMediaFireFolder, SourcePixelDrainFolder:
		return true
	default:
		return false
	}
}

// GeneralFileType tags a volume-level (non-issue) file.
type GeneralFileType string

const (
	GeneralFileMetadata GeneralFileType = "metadata"
	GeneralFileCover    GeneralFileType = "cover"
)

// DownloadType is the transport a queue entry is fetched over, decided at
// enqueue time from the winning Release's source kind.
type DownloadType string

const (
	DownloadTypeDirect   DownloadType = "direct"
	DownloadTypeMega     DownloadType = "mega"
	DownloadTypeTorrent  DownloadType = "torrent"
	DownloadTypeUsenet   DownloadType = "usenet"
)

// SearchKind selects which query templates the aggregator client uses.
type SearchKind string

const (
	SearchKindVolume SearchKind = "volume"
	SearchKindIssue  SearchKind = "issue"
	SearchKindTPB    SearchKind = "tpb"
	SearchKindVAI    SearchKind = "vai"
)
