// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package update reports whether a newer release is available. It never
// downloads or replaces the running binary: that collaborator is out of
// scope here, unlike the teacher's own updater.
package update

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/httpx"
)

const defaultBaseURL = "https://api.github.com"

// Checker queries a GitHub repository's releases for the latest tag.
type Checker struct {
	httpClient *httpx.Client
	repository string
	baseURL    string
}

// New builds a Checker against a "owner/name" GitHub repository slug.
func New(httpClient *httpx.Client, repository string) *Checker {
	return &Checker{httpClient: httpClient, repository: repository, baseURL: defaultBaseURL}
}

type githubRelease struct {
	TagName string `json:"tag_name"`
}

// LatestVersion fetches the repository's latest release tag, parsed as a
// semantic version (a leading "v" is stripped, matching GitHub's usual
// tag convention).
func (c *Checker) LatestVersion(ctx context.Context) (*semver.Version, error) {
	url := c.baseURL + "/repos/" + c.repository + "/releases/latest"
	resp, err := c.httpClient.Get(ctx, url, map[string]string{"Accept": "application/vnd.github+json"})
	if err != nil {
		return nil, errors.Wrap(err, "fetch latest release")
	}
	defer resp.Body.Close()

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, errors.Wrap(err, "decode release response")
	}

	v, err := semver.NewVersion(strings.TrimPrefix(rel.TagName, "v"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse release tag %q", rel.TagName)
	}
	return v, nil
}

// IsUpdateAvailable compares currentVersion (e.g. the build-time version
// string) against the latest release, reporting whether a newer one
// exists. An unparseable currentVersion (a "dev" build) is never
// considered out of date.
func (c *Checker) IsUpdateAvailable(ctx context.Context, currentVersion string) (bool, *semver.Version, error) {
	current, err := semver.NewVersion(strings.TrimPrefix(currentVersion, "v"))
	if err != nil {
		return false, nil, nil
	}

	latest, err := c.LatestVersion(ctx)
	if err != nil {
		return false, nil, err
	}

	return latest.GreaterThan(current), latest, nil
}
