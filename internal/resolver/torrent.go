// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

import (
	"context"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/pkg/hashutil"
)

// fixedTrackers is appended to every magnet URI this resolver builds from
// a bare .torrent file, so a tracker-less torrent still has somewhere to
// announce to.
var fixedTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.stealth.si:80/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://tracker.moeking.me:6969/announce",
}

func resolveTorrent(ctx context.Context, client *httpx.Client, link string) (Resolved, error) {
	if strings.HasPrefix(link, "magnet:?") {
		return Resolved{Kind: domain.SourceTorrent, PureLink: link, DownloadType: domain.DownloadTypeTorrent}, nil
	}

	resp, err := client.Get(ctx, link, nil)
	if err != nil {
		return Resolved{}, linkBroken(err.Error())
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/x-bittorrent" {
		return Resolved{}, sourceNotSupported("torrent link did not serve a .torrent file")
	}

	mi, err := metainfo.Load(resp.Body)
	if err != nil {
		return Resolved{}, linkBroken("could not parse torrent file: " + err.Error())
	}

	magnet := buildMagnet(hashutil.Normalize(mi.HashInfoBytes().HexString()))
	return Resolved{Kind: domain.SourceTorrent, PureLink: magnet, DownloadType: domain.DownloadTypeTorrent}, nil
}

func buildMagnet(infoHashHex string) string {
	var sb strings.Builder
	sb.WriteString("magnet:?xt=urn:btih:")
	sb.WriteString(infoHashHex)
	for _, tr := range fixedTrackers {
		sb.WriteString("&tr=")
		sb.WriteString(tr)
	}
	return sb.String()
}
