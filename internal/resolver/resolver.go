// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package resolver turns an (source_kind, url) pair discovered by the
// aggregator into a concrete pure link ready to stream.
package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
)

// Credential is the narrow shape resolvers need out of a stored
// credential; kept local so this package doesn't depend on internal/store.
type Credential struct {
	Username string
	Password string
	APIKey   string
}

// CredentialSource looks up a credential by source name ("mega",
// "pixeldrain", ...). ok is false when none is configured.
type CredentialSource interface {
	CredentialFor(ctx context.Context, source string) (cred Credential, ok bool, err error)
}

// Resolved is the outcome of resolving a link: the (possibly refined)
// source kind, the pure link ready to stream, and any credential to
// authenticate the subsequent download with.
type Resolved struct {
	Kind         domain.SourceKind
	PureLink     string
	DownloadType domain.DownloadType
	Credential   *Credential
}

var (
	megaRegex            = regexp.MustCompile(`(?i)https?://mega\.(nz|io)/`)
	mediafireRegex       = regexp.MustCompile(`(?i)https?://www\.mediafire\.com/`)
	extractMediafireRegex = regexp.MustCompile(`(?i)window\.location\.href\s?=\s?'https://download\d+\.mediafire\.com/[^']*`)
)

func linkBroken(detail string) error {
	return &domain.LinkBrokenError{Reason: domain.LinkBrokenReasonBroken, Detail: detail}
}

func sourceNotSupported(detail string) error {
	return &domain.LinkBrokenError{Reason: domain.LinkBrokenReasonSourceNotSupported, Detail: detail}
}

// Resolve dispatches to the per-source-kind resolution logic below.
func Resolve(ctx context.Context, client *httpx.Client, kind domain.SourceKind, link string, creds CredentialSource) (Resolved, error) {
	switch kind {
	case domain.SourceMega, domain.SourceMegaFolder:
		return resolveMega(ctx, client, link)
	case domain.SourceMediaFire, domain.SourceMediaFireFolder:
		return resolveMediaFire(ctx, client, link)
	case domain.SourceWeTransfer:
		return resolveWeTransfer(ctx, client, link)
	case domain.SourcePixelDrain, domain.SourcePixelDrainFolder:
		return resolvePixelDrain(ctx, creds, link)
	case domain.SourceTorrent:
		return resolveTorrent(ctx, client, link)
	case domain.SourceDirect:
		return Resolved{Kind: kind, PureLink: link, DownloadType: domain.DownloadTypeDirect}, nil
	case domain.SourceUsenet:
		return Resolved{Kind: kind, PureLink: link, DownloadType: domain.DownloadTypeUsenet}, nil
	default:
		return Resolved{}, sourceNotSupported(string(kind))
	}
}

// finalURL follows redirects (the default behavior of httpx's underlying
// *http.Client) and returns the body plus the URL the chain settled on.
func finalURL(ctx context.Context, client *httpx.Client, link string) (body, url string, err error) {
	resp, err := client.Get(ctx, link, nil)
	if err != nil {
		return "", "", linkBroken(err.Error())
	}
	url = resp.Request.URL.String()
	body, err = httpx.ReadAll(resp)
	if err != nil {
		return "", "", linkBroken(err.Error())
	}
	return body, url, nil
}

func resolveMega(ctx context.Context, client *httpx.Client, link string) (Resolved, error) {
	_, url, err := finalURL(ctx, client, link)
	if err != nil {
		return Resolved{}, err
	}
	if !megaRegex.MatchString(url) {
		return Resolved{}, sourceNotSupported("not a mega link")
	}

	kind := domain.SourceMega
	if strings.Contains(url, "#F!") || strings.Contains(url, "/folder/") {
		kind = domain.SourceMegaFolder
	}
	return Resolved{Kind: kind, PureLink: url, DownloadType: domain.DownloadTypeMega}, nil
}

func resolveMediaFire(ctx context.Context, client *httpx.Client, link string) (Resolved, error) {
	body, url, err := finalURL(ctx, client, link)
	if err != nil {
		return Resolved{}, err
	}
	if !mediafireRegex.MatchString(url) {
		return Resolved{}, sourceNotSupported("not a mediafire link")
	}
	if strings.Contains(url, "error.php") {
		return Resolved{}, linkBroken("mediafire reports the file is gone")
	}
	if strings.Contains(url, "/folder/") {
		parts := strings.SplitN(url, "/folder/", 2)
		key := strings.SplitN(parts[1], "/", 2)[0]
		return Resolved{Kind: domain.SourceMediaFireFolder, PureLink: key, DownloadType: domain.DownloadTypeDirect}, nil
	}

	if m := extractMediafireRegex.FindString(body); m != "" {
		if idx := strings.LastIndex(m, "'"); idx >= 0 {
			return Resolved{Kind: domain.SourceMediaFire, PureLink: m[idx+1:], DownloadType: domain.DownloadTypeDirect}, nil
		}
	}

	if href, ok := findDownloadButtonHref(body); ok {
		return Resolved{Kind: domain.SourceMediaFire, PureLink: href, DownloadType: domain.DownloadTypeDirect}, nil
	}

	return Resolved{}, linkBroken("mediafire page has no download button")
}
