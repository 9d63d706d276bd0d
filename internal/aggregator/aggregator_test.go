// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
)

const searchPage = `
<html><body>
<article class="post"><a href="/saga-1-10"><h1 class="post-title">Saga Vol. 1 #1-10 (2012)</h1></a></article>
</body></html>`

const articlePage = `
<html><body>
<section class="post-contents">
<p>Saga #1-10 | Language :  English</p>
<div class="aio-button-center"><a href="https://mega.nz/file/abc">Mega Link</a></div>
<div class="aio-button-center"><a href="https://getcomics.org/dl/abc">Main Download</a></div>
<hr>
</section>
</body></html>`

func TestClientSearchDedupesAcrossQueries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	c := New(httpx.New("kapowarr-test"), srv.URL)
	releases, err := c.Search(context.Background(), Query{Title: "Saga", VolumeNumber: 1, Year: 2012, HasYear: true})
	require.NoError(t, err)

	assert.NotEmpty(t, releases)
	for _, r := range releases {
		assert.Equal(t, "/saga-1-10", r.Link)
		assert.Equal(t, "GetComics", r.Source)
	}
	// Every query template hit the fake server but results collapse to one.
	assert.True(t, hits > 1)
	assert.Len(t, dedupeLinks(releases), 1)
}

func dedupeLinks(releases []domain.Release) map[string]bool {
	out := map[string]bool{}
	for _, r := range releases {
		out[r.Link] = true
	}
	return out
}

func TestClientFetchGroupsFiltersTorrentWithoutClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Replace(articlePage, "<hr>",
			`<div class="aio-button-center"><a href="magnet:?xt=abc">Torrent Link</a></div><hr>`, 1)))
	}))
	defer srv.Close()

	c := New(httpx.New("kapowarr-test"), srv.URL)
	groups, err := c.FetchGroups(context.Background(), srv.URL+"/saga-1-10", false, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	_, hasTorrent := groups[0].Links[domain.SourceTorrent]
	assert.False(t, hasTorrent)
	assert.Contains(t, groups[0].Links, domain.SourceMega)
	assert.Contains(t, groups[0].Links, domain.SourceDirect)
}

type blockEverything struct{}

func (blockEverything) ContainsLink(ctx context.Context, downloadLink, webLink string) (bool, error) {
	return true, nil
}

func TestClientFetchGroupsFiltersBlocklisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	c := New(httpx.New("kapowarr-test"), srv.URL)
	groups, err := c.FetchGroups(context.Background(), srv.URL+"/saga-1-10", true, blockEverything{})
	require.NoError(t, err)
	assert.Len(t, groups, 0)
}
