// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/internal/queue"
	"github.com/kapowarr/kapowarr/internal/resolver"
)

// Queue is the narrow surface auto-pick needs to hand a chosen release
// off to the download queue.
type Queue interface {
	Enqueue(ctx context.Context, p queue.EnqueueParams) (int64, error)
}

// AutoEngine wraps Engine with what auto-pick additionally needs:
// somewhere to resolve a release's chosen link into a concrete download,
// and somewhere to enqueue it.
type AutoEngine struct {
	*Engine

	queue                   Queue
	httpClient              *httpx.Client
	creds                   resolver.CredentialSource
	torrentClientConfigured func() bool
}

// NewAuto builds an AutoEngine over an already-constructed Engine.
func NewAuto(e *Engine, q Queue, httpClient *httpx.Client, creds resolver.CredentialSource, torrentClientConfigured func() bool) *AutoEngine {
	return &AutoEngine{Engine: e, queue: q, httpClient: httpClient, creds: creds, torrentClientConfigured: torrentClientConfigured}
}

// AutoSearchVolume runs a volume search and enqueues whatever it
// auto-picks, returning the releases it picked for the caller's own
// logging/UI purposes.
func (a *AutoEngine) AutoSearchVolume(ctx context.Context, volumeID int64) ([]domain.Release, error) {
	picks, err := a.pickForVolume(ctx, volumeID)
	if err != nil {
		return nil, err
	}
	for _, r := range picks {
		if _, err := a.enqueueRelease(ctx, volumeID, r); err != nil {
			log.Error().Err(err).Int64("volume_id", volumeID).Str("link", r.Link).Msg("[SEARCH] failed to enqueue auto-picked release")
		}
	}
	return picks, nil
}

// AutoSearchIssue runs an issue search and enqueues its pick, if any.
func (a *AutoEngine) AutoSearchIssue(ctx context.Context, volumeID, issueID int64) ([]domain.Release, error) {
	picks, err := a.pickForIssue(ctx, volumeID, issueID)
	if err != nil {
		return nil, err
	}
	for _, r := range picks {
		if _, err := a.enqueueRelease(ctx, volumeID, r); err != nil {
			log.Error().Err(err).Int64("volume_id", volumeID).Str("link", r.Link).Msg("[SEARCH] failed to enqueue auto-picked release")
		}
	}
	return picks, nil
}

// AutoSearchAllMonitored sweeps every monitored volume and auto-picks +
// enqueues releases for each. It is the single entry point an external
// scheduler is expected to call periodically; this package has no
// scheduler of its own.
func (a *AutoEngine) AutoSearchAllMonitored(ctx context.Context) error {
	volumes, err := a.store.ListMonitoredVolumes(ctx)
	if err != nil {
		return errors.Wrap(err, "list monitored volumes")
	}
	for _, v := range volumes {
		if _, err := a.AutoSearchVolume(ctx, v.ID); err != nil {
			log.Error().Err(err).Int64("volume_id", v.ID).Msg("[SEARCH] auto search failed")
		}
	}
	return nil
}

// pickForVolume implements the auto-pick decision: first-match for a
// special-version volume, a greedy non-overlapping cover of open issues
// for a normal or VOLUME_AS_ISSUE volume, recursing into a per-issue
// auto-search for whatever's left uncovered.
func (a *AutoEngine) pickForVolume(ctx context.Context, volumeID int64) ([]domain.Release, error) {
	volume, err := a.store.GetVolume(ctx, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load volume")
	}
	if !volume.Monitored {
		return nil, nil
	}

	releases, err := a.Search(ctx, volumeID, nil)
	if err != nil {
		return nil, err
	}
	matches := onlyMatches(releases)

	if volume.SpecialVersion != domain.SpecialVersionNormal && volume.SpecialVersion != domain.SpecialVersionVolumeAsIssue {
		if len(matches) == 0 {
			return nil, nil
		}
		return matches[:1], nil
	}

	open, err := a.store.OpenIssues(ctx, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load open issues")
	}
	if len(open) == 0 {
		return nil, nil
	}
	openSet := make(map[float64]bool, len(open))
	for _, is := range open {
		openSet[is.CalculatedIssueNumber] = true
	}

	allIssues, err := a.store.IssuesForVolume(ctx, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load issues")
	}

	var picked []domain.Release
	for _, r := range matches {
		if !r.CoveredIssues.IsSet() {
			continue
		}
		lo, hi := r.CoveredIssues.Bounds()

		coveredByThisRelease := false
		rangeEntirelyOpen := true
		for _, is := range allIssues {
			if is.CalculatedIssueNumber < lo || is.CalculatedIssueNumber > hi {
				continue
			}
			coveredByThisRelease = true
			if !openSet[is.CalculatedIssueNumber] {
				rangeEntirelyOpen = false
				break
			}
		}
		if !coveredByThisRelease || !rangeEntirelyOpen {
			continue
		}

		overlapsPicked := false
		for _, p := range picked {
			if p.CoveredIssues.Overlaps(r.CoveredIssues) {
				overlapsPicked = true
				break
			}
		}
		if overlapsPicked {
			continue
		}

		picked = append(picked, r)
	}

	covered := map[float64]bool{}
	for _, r := range picked {
		lo, hi := r.CoveredIssues.Bounds()
		for n := range openSet {
			if n >= lo && n <= hi {
				covered[n] = true
			}
		}
	}

	for _, is := range open {
		if covered[is.CalculatedIssueNumber] {
			continue
		}
		issuePicks, err := a.pickForIssue(ctx, volumeID, is.ID)
		if err != nil {
			log.Warn().Err(err).Int64("issue_id", is.ID).Msg("[SEARCH] per-issue auto search failed")
			continue
		}
		picked = append(picked, issuePicks...)
	}

	return picked, nil
}

// pickForIssue implements the single-issue half of auto-pick: first
// match, nothing fancier, since an issue search has nothing to cover
// beyond itself.
func (a *AutoEngine) pickForIssue(ctx context.Context, volumeID, issueID int64) ([]domain.Release, error) {
	issue, err := a.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, errors.Wrap(err, "load issue")
	}
	if !issue.Monitored {
		return nil, nil
	}

	open, err := a.store.OpenIssues(ctx, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load open issues")
	}
	stillOpen := false
	for _, is := range open {
		if is.ID == issueID {
			stillOpen = true
			break
		}
	}
	if !stillOpen {
		return nil, nil
	}

	releases, err := a.Search(ctx, volumeID, &issueID)
	if err != nil {
		return nil, err
	}
	matches := onlyMatches(releases)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[:1], nil
}

// enqueueRelease resolves a picked release's article page into its
// mirror groups, takes the first link available in service-preference
// order out of each group, and enqueues one download per group.
func (a *AutoEngine) enqueueRelease(ctx context.Context, volumeID int64, r domain.Release) (int64, error) {
	settings := a.settings()
	torrentConfigured := false
	if a.torrentClientConfigured != nil {
		torrentConfigured = a.torrentClientConfigured()
	}

	groups, err := a.aggregator.FetchGroups(ctx, r.Link, torrentConfigured, a.store)
	if err != nil {
		return 0, errors.Wrap(err, "fetch download groups")
	}

	var lastID int64
	for _, g := range groups {
		links := g.OrderedLinks(settings.ServicePreference)
		if len(links) == 0 {
			continue
		}
		link := links[0]

		resolved, err := resolver.Resolve(ctx, a.httpClient, link.Kind, link.URL, a.creds)
		if err != nil {
			log.Warn().Err(err).Str("link", link.URL).Msg("[SEARCH] failed to resolve chosen link")
			continue
		}

		var issueID sql.NullInt64
		if r.CoveredIssues.IsSet() && !r.CoveredIssues.IsRange() {
			if issue, err := a.store.FindIssueByNumber(ctx, volumeID, r.CoveredIssues.Value()); err == nil && issue != nil {
				issueID = sql.NullInt64{Int64: issue.ID, Valid: true}
			}
		}

		id, err := a.queue.Enqueue(ctx, queue.EnqueueParams{
			VolumeID:    volumeID,
			IssueID:     issueID,
			Covered:     r.CoveredIssues,
			Resolved:    resolved,
			SourceName:  g.SubTitle,
			WebLink:     r.Link,
			WebTitle:    r.DisplayTitle,
			WebSubTitle: g.SubTitle,
			Title:       r.DisplayTitle,
		})
		if err != nil {
			log.Error().Err(err).Str("link", link.URL).Msg("[SEARCH] failed to enqueue resolved download")
			continue
		}
		lastID = id
	}
	return lastID, nil
}
