// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMegaFileURLV1(t *testing.T) {
	id, key, ok := parseMegaFileURL("https://mega.nz/#!AbCdEfGh!SomeKeyValue-_123")
	require.True(t, ok)
	assert.Equal(t, "AbCdEfGh", id)
	assert.Equal(t, "SomeKeyValue-_123", key)
}

func TestParseMegaFileURLV2(t *testing.T) {
	id, key, ok := parseMegaFileURL("https://mega.nz/file/AbCdEfGh#SomeKeyValue-_123")
	require.True(t, ok)
	assert.Equal(t, "AbCdEfGh", id)
	assert.Equal(t, "SomeKeyValue-_123", key)
}

func TestParseMegaFileURLRejectsFolder(t *testing.T) {
	_, _, ok := parseMegaFileURL("https://mega.nz/folder/AbCdEfGh#SomeKeyValue-_123")
	assert.False(t, ok)
}

func TestParseMegaFolderURLV2(t *testing.T) {
	id, key, fileID, ok := parseMegaFolderURL("https://mega.nz/folder/AbCdEfGh#FolderKey/file/ZyXwVu")
	require.True(t, ok)
	assert.Equal(t, "AbCdEfGh", id)
	assert.Equal(t, "FolderKey", key)
	assert.Equal(t, "ZyXwVu", fileID)
}

func TestParseMegaFolderURLV1(t *testing.T) {
	id, key, fileID, ok := parseMegaFolderURL("https://mega.nz/#F!AbCdEfGh!FolderKey")
	require.True(t, ok)
	assert.Equal(t, "AbCdEfGh", id)
	assert.Equal(t, "FolderKey", key)
	assert.Empty(t, fileID)
}
