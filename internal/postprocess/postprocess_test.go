// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/queue"
	"github.com/kapowarr/kapowarr/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newProcessor(s *store.Store) *Processor {
	settings := domain.DefaultSettings()
	return New(s, func() domain.Settings { return settings }, nil)
}

func setupBatmanVolume(t *testing.T, s *store.Store) (volID int64, folder string) {
	t.Helper()
	ctx := context.Background()

	root := t.TempDir()
	folder = filepath.Join(root, "Batman (1940)")
	rfID, err := s.CreateRootFolder(ctx, root)
	require.NoError(t, err)

	volID, err = s.CreateVolume(ctx, &store.Volume{
		CatalogueID: "cv:1", Title: "Batman", Year: 1940, Folder: folder, RootFolderID: rfID, Monitored: true,
	})
	require.NoError(t, err)

	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 1, Monitored: true})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 2, Monitored: true})
	require.NoError(t, err)
	return volID, folder
}

func TestSuccessMovesScansAndConverts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID, folder := setupBatmanVolume(t, s)

	downloadDir := t.TempDir()
	file := filepath.Join(downloadDir, "Batman 001 (1940).cbz")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	d := &store.Download{ID: 1, VolumeID: volID, Files: []string{file}, State: domain.DownloadStateImporting}

	p := newProcessor(s)
	require.NoError(t, p.Process(ctx, d, queue.OutcomeSuccess))

	_, err := os.Stat(filepath.Join(folder, "Batman 001 (1940).cbz"))
	assert.NoError(t, err)
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	open, err := s.OpenIssues(ctx, volID)
	require.NoError(t, err)
	assert.Len(t, open, 1) // issue 2 still has no linked file
}

func TestSuccessTorrentCompleteExtractsRelevantFilesOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID, folder := setupBatmanVolume(t, s)

	payload := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(payload, "Batman 001 (1940).cbz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(payload, "Batman 002 (1940).cbz"), []byte("xx"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(payload, "Some Unrelated Comic 001 (1999).cbz"), []byte("y"), 0o644))

	d := &store.Download{ID: 2, VolumeID: volID, Files: []string{payload}, State: domain.DownloadStateImporting}

	p := newProcessor(s)
	require.NoError(t, p.Process(ctx, d, queue.OutcomeSuccessTorrentComplete))

	_, err := os.Stat(filepath.Join(folder, "Batman 001 (1940).cbz"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(folder, "Batman 002 (1940).cbz"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(folder, "Some Unrelated Comic 001 (1999).cbz"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(payload)
	assert.True(t, os.IsNotExist(err), "torrent payload folder should be removed once extracted")

	open, err := s.OpenIssues(ctx, volID)
	require.NoError(t, err)
	assert.Len(t, open, 0)
}

func TestSuccessTorrentCopyDuringSeedingKeepsPayload(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID, folder := setupBatmanVolume(t, s)

	payload := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(payload, "Batman 001 (1940).cbz"), []byte("x"), 0o644))

	d := &store.Download{ID: 3, VolumeID: volID, Files: []string{payload}, State: domain.DownloadStateSeeding}

	p := newProcessor(s)
	require.NoError(t, p.Process(ctx, d, queue.OutcomeSuccessTorrentCopyDuringSeeding))

	_, err := os.Stat(filepath.Join(folder, "Batman 001 (1940).cbz"))
	assert.NoError(t, err)
	_, err = os.Stat(payload)
	assert.NoError(t, err, "original payload must survive the during-seeding chain")

	require.NoError(t, p.Process(ctx, d, queue.OutcomeSuccessTorrentCopyCompleted))
	_, err = os.Stat(payload)
	assert.True(t, os.IsNotExist(err), "completed-seeding chain deletes the original payload")
}

func TestCanceledDeletesFiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID, _ := setupBatmanVolume(t, s)

	downloadDir := t.TempDir()
	file := filepath.Join(downloadDir, "partial.cbz")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	d := &store.Download{ID: 4, VolumeID: volID, Files: []string{file}, State: domain.DownloadStateDownloading}

	p := newProcessor(s)
	require.NoError(t, p.Process(ctx, d, queue.OutcomeCanceled))

	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestPermanentlyFailedBlocklistsAndDeletes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	volID, _ := setupBatmanVolume(t, s)

	downloadDir := t.TempDir()
	file := filepath.Join(downloadDir, "broken.cbz")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	d := &store.Download{
		ID: 5, VolumeID: volID, Files: []string{file}, State: domain.DownloadStateFailed,
		WebLink: "https://example.com/broken", DownloadLink: "https://example.com/broken.torrent",
		EnqueuedAt: time.Now(),
	}

	p := newProcessor(s)
	require.NoError(t, p.Process(ctx, d, queue.OutcomePermanentlyFailed))

	blocked, err := s.ContainsLink(ctx, d.DownloadLink, d.WebLink)
	require.NoError(t, err)
	assert.True(t, blocked)

	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}
