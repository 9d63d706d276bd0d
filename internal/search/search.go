// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package search builds aggregator queries for a volume or issue, scores
// and ranks the results, and auto-picks releases to hand to the download
// queue.
package search

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/aggregator"
	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/matching"
	"github.com/kapowarr/kapowarr/internal/store"
)

// Aggregator is the narrow collaborator surface the engine needs out of
// internal/aggregator.
type Aggregator interface {
	Search(ctx context.Context, q aggregator.Query) ([]domain.Release, error)
	FetchGroups(ctx context.Context, articleLink string, torrentClientConfigured bool, blocklist matching.Blocklist) ([]domain.DownloadGroup, error)
}

// Store is the narrow persistence surface the engine needs.
type Store interface {
	GetVolume(ctx context.Context, id int64) (*store.Volume, error)
	IssuesForVolume(ctx context.Context, volumeID int64) ([]*store.Issue, error)
	GetIssue(ctx context.Context, id int64) (*store.Issue, error)
	OpenIssues(ctx context.Context, volumeID int64) ([]*store.Issue, error)
	FindIssueByNumber(ctx context.Context, volumeID int64, n float64) (*store.Issue, error)
	ListMonitoredVolumes(ctx context.Context) ([]*store.Volume, error)
	ContainsLink(ctx context.Context, downloadLink, webLink string) (bool, error)
}

// Engine ties the aggregator, the match/rank predicates, and (for the
// auto-pick entry points) the download queue together.
type Engine struct {
	aggregator Aggregator
	store      Store
	settings   func() domain.Settings
}

// New builds an Engine capable of Search but not auto-pick; wrap it with
// NewAuto (autopick.go) to add the queue/resolver wiring auto-pick needs.
func New(agg Aggregator, st Store, settings func() domain.Settings) *Engine {
	return &Engine{aggregator: agg, store: st, settings: settings}
}

// Search runs every query template for the given volume (or, if issueID
// is non-nil, for one specific issue of it), annotates each Release with
// its search-result-match verdict and covered-issue range, and returns
// them ranked best-first.
func (e *Engine) Search(ctx context.Context, volumeID int64, issueID *int64) ([]domain.Release, error) {
	volume, err := e.store.GetVolume(ctx, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load volume")
	}

	issues, err := e.store.IssuesForVolume(ctx, volumeID)
	if err != nil {
		return nil, errors.Wrap(err, "load issues")
	}
	vissues := make([]matching.VolumeIssue, len(issues))
	// numberToYear carries an entry for every issue of the volume, not just
	// ones with a known release date: the match filter also uses it as the
	// membership set deciding whether a result's claimed issue numbers
	// belong to this volume at all. A missing release date maps to 0,
	// which never equals a real result year.
	numberToYear := make(map[float64]int, len(issues))
	for i, is := range issues {
		vissues[i] = matching.VolumeIssue{CalculatedIssueNumber: is.CalculatedIssueNumber}
		numberToYear[is.CalculatedIssueNumber] = yearFromReleaseDate(is.ReleaseDate, 0)
	}

	var calculatedIssueNumber domain.Number
	var queryIssueNumber int
	if issueID != nil {
		issue, err := e.store.GetIssue(ctx, *issueID)
		if err != nil {
			return nil, errors.Wrap(err, "load issue")
		}
		calculatedIssueNumber = domain.Single(issue.CalculatedIssueNumber)
		queryIssueNumber = int(issue.CalculatedIssueNumber)
	}

	query := aggregator.Query{
		Title:          volume.Title,
		VolumeNumber:   volume.VolumeNumber,
		Year:           volume.Year,
		HasYear:        volume.Year != 0,
		SpecialVersion: volume.SpecialVersion,
		IssueNumber:    queryIssueNumber,
		HasIssueNumber: issueID != nil,
	}

	releases, err := e.aggregator.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "run aggregator search")
	}

	vref := matching.VolumeRef{VolumeNumber: volume.VolumeNumber, Year: volume.Year, SpecialVersion: volume.SpecialVersion}
	for i := range releases {
		r := &releases[i]
		r.CoveredIssues = coveredIssues(r.Fingerprint, vref)

		verdict := matching.CheckSearchResultMatch(
			ctx, e.store, r.Fingerprint, r.Link, vref, volume.Title, volume.AltTitle,
			vissues, numberToYear, calculatedIssueNumber,
		)
		r.Match = verdict.Match
	}

	rankReleases(releases, query.Title, volume.VolumeNumber, volume.Year, calculatedIssueNumber, numberToYear)
	return releases, nil
}

// coveredIssues derives the issue number(s) a release's fingerprint
// claims to cover: its own issue number directly, or — for a
// VOLUME_AS_ISSUE volume — its volume number reinterpreted as an issue
// range.
func coveredIssues(fp domain.Fingerprint, volume matching.VolumeRef) domain.Number {
	switch {
	case fp.IssueNumber.IsSet():
		return fp.IssueNumber
	case volume.SpecialVersion == domain.SpecialVersionVolumeAsIssue && fp.VolumeNumber.IsSet():
		lo, hi := fp.VolumeNumber.Bounds()
		return domain.Span(float64(lo), float64(hi))
	default:
		return domain.NoNumber
	}
}

// yearFromReleaseDate takes the leading 4 digits of a "YYYY-MM-DD"-ish
// release date; mirrors the scanner's own date-to-year reduction.
func yearFromReleaseDate(date string, fallback int) int {
	if len(date) < 4 {
		return fallback
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return fallback
	}
	return year
}

// onlyMatches filters releases down to those the match verdict accepted,
// preserving rank order.
func onlyMatches(releases []domain.Release) []domain.Release {
	out := make([]domain.Release, 0, len(releases))
	for _, r := range releases {
		if r.Match {
			out = append(out, r)
		}
	}
	return out
}
