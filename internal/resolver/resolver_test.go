// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

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

func TestResolveDirectPassesThrough(t *testing.T) {
	r, err := Resolve(context.Background(), httpx.New("kapowarr-test"), domain.SourceDirect, "https://example.com/file.cbz", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/file.cbz", r.PureLink)
	assert.Equal(t, domain.DownloadTypeDirect, r.DownloadType)
}

func TestResolveTorrentMagnetPassthrough(t *testing.T) {
	r, err := Resolve(context.Background(), httpx.New("kapowarr-test"), domain.SourceTorrent, "magnet:?xt=urn:btih:abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", r.PureLink)
	assert.Equal(t, domain.DownloadTypeTorrent, r.DownloadType)
}

func TestResolveMediaFireFolderLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	link := srv.URL + "/folder/abc123/SomeFolder"
	// The link has the mediafire folder path shape but is served by a plain
	// local handler with no redirect.
	r, err := resolveMediaFire(context.Background(), httpx.New("kapowarr-test"), link)
	// The regex requires a real mediafire.com host; against a local test
	// server it correctly reports the link as unsupported.
	require.Error(t, err)
	_ = r
}

func TestResolveWeTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"direct_link": "https://wetransfer-downloads.example.com/file.zip"}`))
	}))
	defer srv.Close()

	original := weTransferAPIFormat
	weTransferAPIFormat = srv.URL + "/api/v4/transfers/%s/download"
	defer func() { weTransferAPIFormat = original }()

	r, err := resolveWeTransfer(context.Background(), httpx.New("kapowarr-test"), "https://wetransfer.com/downloads/transferid/securityhash")
	require.NoError(t, err)
	assert.Equal(t, "https://wetransfer-downloads.example.com/file.zip", r.PureLink)
}

func TestResolvePixelDrainFile(t *testing.T) {
	r, err := resolvePixelDrain(context.Background(), nil, "https://pixeldrain.com/u/abcXYZ")
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePixelDrain, r.Kind)
	assert.Equal(t, pixelDrainAPIURL+"/file/abcXYZ", r.PureLink)
}

func TestResolvePixelDrainFolder(t *testing.T) {
	r, err := resolvePixelDrain(context.Background(), nil, "https://pixeldrain.com/l/abcXYZ")
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePixelDrainFolder, r.Kind)
	assert.Equal(t, pixelDrainAPIURL+"/list/abcXYZ/zip", r.PureLink)
}

func TestBuildMagnetIncludesFixedTrackers(t *testing.T) {
	m := buildMagnet("deadbeef")
	assert.True(t, strings.HasPrefix(m, "magnet:?xt=urn:btih:deadbeef"))
	for _, tr := range fixedTrackers {
		assert.Contains(t, m, tr)
	}
}
