// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScanLinksIssueFiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	folder := t.TempDir()
	rfID, err := s.CreateRootFolder(ctx, filepath.Dir(folder))
	require.NoError(t, err)

	volID, err := s.CreateVolume(ctx, &store.Volume{
		CatalogueID: "cv:1", Title: "Batman", Year: 1940, Folder: folder, RootFolderID: rfID, Monitored: true,
	})
	require.NoError(t, err)

	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 1, Monitored: true})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 2, Monitored: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(folder, "Batman 001 (1940).cbz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "Batman 002 (1940).cbz"), []byte("xx"), 0o644))

	res, err := Scan(ctx, s, volID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Linked)

	open, err := s.OpenIssues(ctx, volID)
	require.NoError(t, err)
	assert.Len(t, open, 0)
}

func TestScanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	folder := t.TempDir()
	rfID, err := s.CreateRootFolder(ctx, filepath.Dir(folder))
	require.NoError(t, err)
	volID, err := s.CreateVolume(ctx, &store.Volume{CatalogueID: "cv:1", Title: "Saga", Year: 2012, Folder: folder, RootFolderID: rfID})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 1, Monitored: true})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(folder, "Saga 001 (2012).cbz"), []byte("x"), 0o644))

	first, err := Scan(ctx, s, volID, nil)
	require.NoError(t, err)
	second, err := Scan(ctx, s, volID, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Linked, second.Linked)

	files, err := s.FilesForVolumeFolder(ctx, folder)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestScanUnlinksRemovedFiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	folder := t.TempDir()
	rfID, err := s.CreateRootFolder(ctx, filepath.Dir(folder))
	require.NoError(t, err)
	volID, err := s.CreateVolume(ctx, &store.Volume{CatalogueID: "cv:1", Title: "Saga", Year: 2012, Folder: folder, RootFolderID: rfID})
	require.NoError(t, err)
	_, err = s.CreateIssue(ctx, &store.Issue{VolumeID: volID, CalculatedIssueNumber: 1, Monitored: true})
	require.NoError(t, err)

	path := filepath.Join(folder, "Saga 001 (2012).cbz")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = Scan(ctx, s, volID, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	res, err := Scan(ctx, s, volID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	open, err := s.OpenIssues(ctx, volID)
	require.NoError(t, err)
	assert.Len(t, open, 1, "issue reopens once its file disappears")
}
