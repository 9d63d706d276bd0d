// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
)

func TestDirectDownloadUsesNamingEngineFilename(t *testing.T) {
	body := bytes.Repeat([]byte("x"), directChunkSize+500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="remote-name.cbz"`)
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDirect(httpx.New("kapowarr-test"), domain.SourceDirect, srv.URL, dir, func() (string, bool) {
		return "Renamed Issue 001", true
	}, nil)

	var lastProgress Progress
	files, err := d.Run(context.Background(), func(p Progress) { lastProgress = p })
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "Renamed Issue 001.cbz"), files[0])
	assert.Equal(t, int64(len(body)), lastProgress.Downloaded)

	written, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, body, written)
}

func TestDirectDownloadFallsBackToContentDispositionName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="comic.cbr"`)
		w.Write([]byte("small file"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDirect(httpx.New("kapowarr-test"), domain.SourceDirect, srv.URL, dir, nil, nil)
	files, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comic.cbr"), files[0])
}

func TestDirectDownloadPixelDrainQuotaIsLimitReached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	link := srv.URL + "/pixeldrain.com/api/file/abc"
	d := NewDirect(httpx.New("kapowarr-test"), domain.SourcePixelDrain, link, dir, nil, nil)
	_, err := d.Run(context.Background(), nil)

	var limitErr *domain.DownloadLimitReachedError
	assert.ErrorAs(t, err, &limitErr)
}
