// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package externalclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnetInfoHash(t *testing.T) {
	hash, err := magnetInfoHash("magnet:?xt=urn:btih:ABCDEF0123456789ABCDEF0123456789ABCDEF01&tr=udp://tracker.example/announce")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", hash)
}

func TestMagnetInfoHashMissing(t *testing.T) {
	_, err := magnetInfoHash("magnet:?dn=no-hash-here")
	assert.Error(t, err)
}

func TestMagnetInfoHashWrongLength(t *testing.T) {
	_, err := magnetInfoHash("magnet:?xt=urn:btih:tooshort")
	assert.Error(t, err)
}
