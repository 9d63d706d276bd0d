// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestA32BytesRoundTrip(t *testing.T) {
	a := []uint32{0x01020304, 0xAABBCCDD, 0x00000000, 0xFFFFFFFF}
	b := a32ToBytes(a)
	assert.Equal(t, a, bytesToA32(b))
}

func TestMegaBase64RoundTrip(t *testing.T) {
	data := []byte{0, 1, 2, 3, 250, 251, 252, 253, 254, 255}
	encoded := megaBase64Encode(data)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")

	decoded, err := megaBase64Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestCipherKeyParts(t *testing.T) {
	key := []uint32{1, 2, 3, 4, 5, 6, 7, 8}
	k, iv, metaMac := cipherKeyParts(key)
	assert.Equal(t, []uint32{1 ^ 5, 2 ^ 6, 3 ^ 7, 4 ^ 8}, k)
	assert.Equal(t, []uint32{5, 6, 0, 0}, iv)
	assert.Equal(t, []uint32{7, 8}, metaMac)
}

func TestDecryptKeyA32RoundTripsWithEncryptKeyA32(t *testing.T) {
	key := []uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}
	plain := []uint32{1, 2, 3, 4, 5, 6, 7, 8}

	encrypted, err := encryptKeyA32(plain, key)
	require.NoError(t, err)
	decrypted, err := decryptKeyA32(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)
}

func TestGetChunksGrowsThenCaps(t *testing.T) {
	size := int64(0x20000*3 + 0x100000*2 + 100)
	chunks := getChunks(size)
	require.NotEmpty(t, chunks)

	var total int64
	for _, c := range chunks {
		total += c.Size
	}
	assert.Equal(t, size, total)

	assert.Equal(t, int64(0x20000), chunks[0].Size)
	last := chunks[len(chunks)-1]
	assert.Equal(t, size-last.Start, last.Size)
}

func TestGetChunksSmallFile(t *testing.T) {
	chunks := getChunks(100)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].Start)
	assert.Equal(t, int64(100), chunks[0].Size)
}

func TestChecksumDeterministic(t *testing.T) {
	fileKey := []uint32{1, 2, 3, 4, 5, 6, 7, 8}

	run := func() [2]uint32 {
		sum, err := newChecksum(fileKey)
		require.NoError(t, err)
		sum.update(make([]byte, 50))
		sum.update([]byte("the rest of the file, not block aligned"))
		return sum.digest()
	}

	assert.Equal(t, run(), run())
}
