// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "sort"

// Release is a transient search-result hit from the aggregator.
type Release struct {
	Fingerprint  Fingerprint
	Link         string
	DisplayTitle string
	Source       string

	// Match is filled in by the search-result-match filter.
	Match          bool
	CoveredIssues  Number
}

// DownloadLink is one candidate link inside a DownloadGroup, in the order
// it was discovered on the article page.
type DownloadLink struct {
	Kind SourceKind
	URL  string
}

// DownloadGroup is one equivalent set of mirror links parsed from an
// aggregator article page: a "button block" or "list block" group.
type DownloadGroup struct {
	SubTitle    string
	Fingerprint Fingerprint
	Links       map[SourceKind][]DownloadLink
}

// OrderedLinks flattens Links in the caller-supplied service preference
// order, skipping kinds absent from the group.
func (g DownloadGroup) OrderedLinks(preference []SourceKind) []DownloadLink {
	var out []DownloadLink
	seen := make(map[SourceKind]bool, len(preference))
	for _, kind := range preference {
		seen[kind] = true
		out = append(out, g.Links[kind]...)
	}
	// Any kind not named in the preference (shouldn't happen once settings
	// validation runs) is appended last, with kinds sorted lexically so the
	// result does not depend on map iteration order.
	var extra []SourceKind
	for kind := range g.Links {
		if !seen[kind] {
			extra = append(extra, kind)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, kind := range extra {
		out = append(out, g.Links[kind]...)
	}
	return out
}
