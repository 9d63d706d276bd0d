// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/aggregator"
	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/matching"
	"github.com/kapowarr/kapowarr/internal/queue"
	"github.com/kapowarr/kapowarr/internal/store"
)

type fakeAggregator struct {
	results []domain.Release
	groups  []domain.DownloadGroup
}

func (f *fakeAggregator) Search(ctx context.Context, q aggregator.Query) ([]domain.Release, error) {
	return append([]domain.Release(nil), f.results...), nil
}

func (f *fakeAggregator) FetchGroups(ctx context.Context, articleLink string, torrentClientConfigured bool, blocklist matching.Blocklist) ([]domain.DownloadGroup, error) {
	return f.groups, nil
}

type fakeQueue struct {
	calls []queue.EnqueueParams
}

func (f *fakeQueue) Enqueue(ctx context.Context, p queue.EnqueueParams) (int64, error) {
	f.calls = append(f.calls, p)
	return int64(len(f.calls)), nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupSagaVolume(t *testing.T, s *store.Store) int64 {
	t.Helper()
	ctx := context.Background()

	rfID, err := s.CreateRootFolder(ctx, t.TempDir())
	require.NoError(t, err)

	volID, err := s.CreateVolume(ctx, &store.Volume{
		CatalogueID: "cv:1", Title: "Saga", Year: 2012, VolumeNumber: 1,
		Folder: t.TempDir(), RootFolderID: rfID, Monitored: true,
	})
	require.NoError(t, err)

	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 1, Monitored: true})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 2, Monitored: true})
	require.NoError(t, err)
	return volID
}

func TestSearchRanksDirectFitAboveNoFit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID := setupSagaVolume(t, s)

	agg := &fakeAggregator{results: []domain.Release{
		{
			Link: "http://example.com/no-fit",
			Fingerprint: domain.Fingerprint{
				Series: "Saga",
			},
		},
		{
			Link: "http://example.com/direct-fit",
			Fingerprint: domain.Fingerprint{
				Series: "Saga", HasYear: true, Year: 2012, VolumeNumber: domain.SingleInt(1),
			},
		},
		{
			Link: "http://example.com/no-match",
			Fingerprint: domain.Fingerprint{
				Series: "Totally Unrelated Comic", HasYear: true, Year: 2012,
			},
		},
	}}

	e := New(agg, s, func() domain.Settings { return domain.DefaultSettings() })
	releases, err := e.Search(ctx, volID, nil)
	require.NoError(t, err)
	require.Len(t, releases, 3)

	assert.Equal(t, "http://example.com/direct-fit", releases[0].Link)
	assert.True(t, releases[0].Match)
	assert.Equal(t, "http://example.com/no-fit", releases[1].Link)
	assert.True(t, releases[1].Match)
	assert.Equal(t, "http://example.com/no-match", releases[2].Link)
	assert.False(t, releases[2].Match)
}

func TestSearchRanksCloserWordSetAboveFarther(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID := setupSagaVolume(t, s)

	agg := &fakeAggregator{results: []domain.Release{
		// "and" is stripped by the title-cleaning regex, so this still
		// counts as a title match against "Saga" — but its raw word split
		// still carries the extra token for word-set-distance purposes.
		{
			Link:        "http://example.com/extra-word",
			Fingerprint: domain.Fingerprint{Series: "Saga and"},
		},
		{
			Link:        "http://example.com/exact",
			Fingerprint: domain.Fingerprint{Series: "Saga"},
		},
	}}

	e := New(agg, s, func() domain.Settings { return domain.DefaultSettings() })
	releases, err := e.Search(ctx, volID, nil)
	require.NoError(t, err)
	require.Len(t, releases, 2)

	assert.True(t, releases[0].Match)
	assert.True(t, releases[1].Match)
	assert.Equal(t, "http://example.com/exact", releases[0].Link)
	assert.Equal(t, "http://example.com/extra-word", releases[1].Link)
}

func TestAutoSearchVolumeCoversIssuesWithOneRangeRelease(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID := setupSagaVolume(t, s)

	agg := &fakeAggregator{
		results: []domain.Release{
			{
				Link:         "http://example.com/saga-1-2",
				DisplayTitle: "Saga #1-2 (2012)",
				Fingerprint: domain.Fingerprint{
					Series: "Saga", HasYear: true, Year: 2012,
					IssueNumber: domain.Span(1, 2),
				},
			},
		},
		groups: []domain.DownloadGroup{
			{
				SubTitle: "Saga #1-2",
				Links: map[domain.SourceKind][]domain.DownloadLink{
					domain.SourceDirect: {{Kind: domain.SourceDirect, URL: "http://example.com/saga-1-2.cbz"}},
				},
			},
		},
	}
	q := &fakeQueue{}

	e := New(agg, s, func() domain.Settings { return domain.DefaultSettings() })
	auto := NewAuto(e, q, nil, nil, nil)

	picks, err := auto.AutoSearchVolume(ctx, volID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "http://example.com/saga-1-2", picks[0].Link)

	require.Len(t, q.calls, 1)
	assert.Equal(t, volID, q.calls[0].VolumeID)
	assert.Equal(t, "http://example.com/saga-1-2.cbz", q.calls[0].Resolved.PureLink)
	assert.Equal(t, domain.DownloadTypeDirect, q.calls[0].Resolved.DownloadType)
}

func TestAutoSearchVolumeRecursesPerIssueWhenUncovered(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID := setupSagaVolume(t, s)

	agg := &fakeAggregator{
		results: []domain.Release{
			{
				Link:         "http://example.com/saga-1",
				DisplayTitle: "Saga #1 (2012)",
				Fingerprint: domain.Fingerprint{
					Series: "Saga", HasYear: true, Year: 2012,
					IssueNumber: domain.Single(1),
				},
			},
		},
		groups: []domain.DownloadGroup{
			{
				SubTitle: "Saga #1",
				Links: map[domain.SourceKind][]domain.DownloadLink{
					domain.SourceDirect: {{Kind: domain.SourceDirect, URL: "http://example.com/saga-1.cbz"}},
				},
			},
		},
	}
	q := &fakeQueue{}

	e := New(agg, s, func() domain.Settings { return domain.DefaultSettings() })
	auto := NewAuto(e, q, nil, nil, nil)

	picks, err := auto.AutoSearchVolume(ctx, volID)
	require.NoError(t, err)
	// The aggregator only ever offers issue #1, so issue #2 stays uncovered
	// even after the per-issue recursion looks for it.
	require.Len(t, picks, 1)
	assert.Equal(t, "http://example.com/saga-1", picks[0].Link)
	assert.Len(t, q.calls, 1)
}
