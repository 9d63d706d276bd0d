// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package aggregator scrapes the configured aggregator site's search
// results and article pages into typed domain.Release and
// domain.DownloadGroup values.
package aggregator

import (
	"context"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/fingerprint"
	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/internal/matching"
	"github.com/kapowarr/kapowarr/internal/pkg/timeouts"
)

// Client is the aggregator-site collaborator. BaseURL is the site root,
// e.g. "https://getcomics.org".
type Client struct {
	HTTP    *httpx.Client
	BaseURL string
}

// New builds a Client over a shared httpx.Client.
func New(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{HTTP: httpClient, BaseURL: baseURL}
}

// Search runs every query template for q against the aggregator
// concurrently, paginates each one, and returns deduplicated Releases
// across all of them, in template order (most-specific template's hits
// win the dedup on a shared link).
func (c *Client) Search(ctx context.Context, q Query) ([]domain.Release, error) {
	queries := BuildQueries(q)
	results := make([][]rawArticle, len(queries))

	ctx, cancel := timeouts.WithSearchTimeout(ctx, timeouts.AdaptiveSearchTimeout(len(queries)))
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i, queryString := range queries {
		i, queryString := i, queryString
		g.Go(func() error {
			found, err := c.searchOne(gctx, queryString)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var releases []domain.Release
	for _, found := range results {
		for _, a := range found {
			if seen[a.Link] {
				continue
			}
			seen[a.Link] = true
			releases = append(releases, domain.Release{
				Fingerprint:  fingerprint.Extract(a.Title, fingerprint.Options{FixYear: true}),
				Link:         a.Link,
				DisplayTitle: a.Title,
				Source:       "GetComics",
			})
		}
	}
	return releases, nil
}

func (c *Client) searchOne(ctx context.Context, queryString string) ([]rawArticle, error) {
	firstPage, err := c.fetchPage(ctx, queryString, 1)
	if err != nil {
		return nil, err
	}

	maxPage, err := maxPageNumber(firstPage)
	if err != nil {
		return nil, err
	}

	bodies := []string{firstPage}
	if maxPage > 1 {
		rest, err := c.fetchPages(ctx, queryString, 2, maxPage)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, rest...)
	}

	var out []rawArticle
	for _, body := range bodies {
		articles, err := extractArticles(body)
		if err != nil {
			return nil, err
		}
		out = append(out, articles...)
	}
	return out, nil
}

// fetchPages fetches pages [from, to] concurrently when a challenge-solver
// is configured, sequentially otherwise.
func (c *Client) fetchPages(ctx context.Context, queryString string, from, to int) ([]string, error) {
	if c.HTTP.Solver == nil {
		var out []string
		for p := from; p <= to; p++ {
			body, err := c.fetchPage(ctx, queryString, p)
			if err != nil {
				return nil, err
			}
			out = append(out, body)
		}
		return out, nil
	}

	out := make([]string, to-from+1)
	g, gctx := errgroup.WithContext(ctx)
	for p := from; p <= to; p++ {
		p := p
		g.Go(func() error {
			body, err := c.fetchPage(gctx, queryString, p)
			if err != nil {
				return err
			}
			out[p-from] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, queryString string, page int) (string, error) {
	u := c.BaseURL
	if page > 1 {
		u += "/page/" + strconv.Itoa(page) + "/"
	}
	u += "/?s=" + url.QueryEscape(queryString)

	resp, err := c.HTTP.Get(ctx, u, nil)
	if err != nil {
		return "", err
	}
	return httpx.ReadAll(resp)
}

// FetchGroups fetches an article page and parses it into DownloadGroups,
// filtering out torrent links when no external torrent client is
// configured and links already present in the blocklist.
func (c *Client) FetchGroups(ctx context.Context, articleLink string, torrentClientConfigured bool, blocklist matching.Blocklist) ([]domain.DownloadGroup, error) {
	resp, err := c.HTTP.Get(ctx, articleLink, nil)
	if err != nil {
		return nil, err
	}
	body, err := httpx.ReadAll(resp)
	if err != nil {
		return nil, err
	}

	rawGroups, err := extractDownloadGroups(body)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DownloadGroup, 0, len(rawGroups))
	for _, rg := range rawGroups {
		links := map[domain.SourceKind][]domain.DownloadLink{}
		for kind, urls := range rg.Links {
			if kind == domain.SourceTorrent && !torrentClientConfigured {
				continue
			}
			for _, link := range urls {
				if blocklist != nil {
					blocked, err := blocklist.ContainsLink(ctx, link, articleLink)
					if err != nil {
						return nil, err
					}
					if blocked {
						continue
					}
				}
				links[kind] = append(links[kind], domain.DownloadLink{Kind: kind, URL: link})
			}
			if len(links[kind]) == 0 {
				delete(links, kind)
			}
		}
		if len(links) == 0 {
			continue
		}
		out = append(out, domain.DownloadGroup{
			SubTitle:    rg.Title,
			Fingerprint: fingerprint.Extract(rg.Title, fingerprint.Options{FixYear: true}),
			Links:       links,
		})
	}
	return out, nil
}
