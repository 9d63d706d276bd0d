// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package aggregator

import (
	"strconv"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
)

// Query describes the volume or issue a search is looking for, in the
// shape the ordered query-formatter templates need.
type Query struct {
	Title          string
	VolumeNumber   int
	Year           int
	HasYear        bool
	SpecialVersion domain.SpecialVersion
	IssueNumber    int
	HasIssueNumber bool
}

// searchKind picks the template set a Query falls under.
func (q Query) searchKind() domain.SearchKind {
	switch {
	case q.SpecialVersion == domain.SpecialVersionTPB:
		return domain.SearchKindTPB
	case q.HasIssueNumber:
		return domain.SearchKindIssue
	default:
		return domain.SearchKindVolume
	}
}

// tpbTemplates, volumeTemplates, and issueTemplates are the ordered
// query-formatter sets, most-specific first, mirroring manual_search's
// query_formats tuples.
var (
	tpbTemplates = []string{
		"{title} Vol. {volume_number} ({year}) TPB",
		"{title} ({year}) TPB",
		"{title} Vol. {volume_number} TPB",
		"{title} Vol. {volume_number}",
		"{title}",
	}
	volumeTemplates = []string{
		"{title} Vol. {volume_number} ({year})",
		"{title} ({year})",
		"{title} Vol. {volume_number}",
		"{title}",
	}
	issueTemplates = []string{
		"{title} #{issue_number} ({year})",
		"{title} Vol. {volume_number} #{issue_number}",
		"{title} #{issue_number}",
		"{title}",
	}
)

// BuildQueries renders every template for q's search kind into a concrete
// search string, stripping the "({year})" segment when the year is
// unknown.
func BuildQueries(q Query) []string {
	var templates []string
	switch q.searchKind() {
	case domain.SearchKindTPB:
		templates = tpbTemplates
	case domain.SearchKindIssue:
		templates = issueTemplates
	default:
		templates = volumeTemplates
	}

	title := strings.ReplaceAll(q.Title, ":", "")

	out := make([]string, 0, len(templates))
	for _, t := range templates {
		rendered := t
		rendered = strings.ReplaceAll(rendered, "{title}", title)
		rendered = strings.ReplaceAll(rendered, "{volume_number}", strconv.Itoa(q.VolumeNumber))
		rendered = strings.ReplaceAll(rendered, "{issue_number}", strconv.Itoa(q.IssueNumber))
		if q.HasYear {
			rendered = strings.ReplaceAll(rendered, "{year}", strconv.Itoa(q.Year))
		} else {
			rendered = strings.ReplaceAll(rendered, "({year})", "")
		}
		rendered = strings.Join(strings.Fields(rendered), " ")
		out = append(out, rendered)
	}
	return out
}
