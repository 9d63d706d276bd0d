// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// a32ToBytes packs a slice of big-endian 32-bit words into bytes, the
// integer representation Mega's API uses for every key and attribute blob.
func a32ToBytes(a []uint32) []byte {
	out := make([]byte, 4*len(a))
	for i, v := range a {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// bytesToA32 is the inverse of a32ToBytes, zero-padding an incomplete
// trailing word rather than erroring.
func bytesToA32(b []byte) []uint32 {
	n := (len(b) + 3) / 4
	padded := make([]byte, n*4)
	copy(padded, b)
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(padded[i*4:])
	}
	return out
}

// megaBase64Decode decodes Mega's URL-safe, unpadded base64 alphabet.
func megaBase64Decode(s string) ([]byte, error) {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "mega base64 decode")
	}
	return b, nil
}

// megaBase64Encode is the inverse of megaBase64Decode.
func megaBase64Encode(b []byte) string {
	s := base64.StdEncoding.EncodeToString(b)
	s = strings.TrimRight(s, "=")
	return strings.NewReplacer("+", "-", "/", "_").Replace(s)
}

func base64ToA32(s string) ([]uint32, error) {
	b, err := megaBase64Decode(s)
	if err != nil {
		return nil, err
	}
	return bytesToA32(b), nil
}

func a32ToBase64(a []uint32) string {
	return megaBase64Encode(a32ToBytes(a))
}

// cipherKeyParts derives the AES file key, CTR starting nonce, and expected
// CBC-MAC from an 8-word master/file key, exactly how Mega folds a
// decrypted node key into its three working parts.
func cipherKeyParts(key []uint32) (k, iv, metaMac []uint32) {
	k = []uint32{key[0] ^ key[4], key[1] ^ key[5], key[2] ^ key[6], key[3] ^ key[7]}
	iv = []uint32{key[4], key[5], 0, 0}
	metaMac = []uint32{key[6], key[7]}
	return
}

// decryptKeyA32 is Mega's key-unwrapping primitive: AES-decrypts data one
// 16-byte (4-word) block at a time, each block independent of the others
// (CBC with a zero IV reset per block is equivalent to ECB here).
func decryptKeyA32(data, key []uint32) ([]uint32, error) {
	block, err := aes.NewCipher(a32ToBytes(key))
	if err != nil {
		return nil, errors.Wrap(err, "mega key cipher")
	}
	var out []uint32
	zeroIV := make([]byte, aes.BlockSize)
	for i := 0; i < len(data); i += 4 {
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		chunk := padA32Bytes(data[i:end])
		plain := make([]byte, len(chunk))
		cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plain, chunk)
		out = append(out, bytesToA32(plain)...)
	}
	return out, nil
}

// encryptKeyA32 is the encrypting counterpart of decryptKeyA32, used to wrap
// a freshly generated key for an anonymous-registration request.
func encryptKeyA32(data, key []uint32) ([]uint32, error) {
	block, err := aes.NewCipher(a32ToBytes(key))
	if err != nil {
		return nil, errors.Wrap(err, "mega key cipher")
	}
	var out []uint32
	zeroIV := make([]byte, aes.BlockSize)
	for i := 0; i < len(data); i += 4 {
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		chunk := padA32Bytes(data[i:end])
		cipherText := make([]byte, len(chunk))
		cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(cipherText, chunk)
		out = append(out, bytesToA32(cipherText)...)
	}
	return out, nil
}

func padA32Bytes(a []uint32) []byte {
	b := a32ToBytes(a)
	if len(b) < aes.BlockSize {
		padded := make([]byte, aes.BlockSize)
		copy(padded, b)
		return padded
	}
	return b
}

// decryptAttr CBC-decrypts a node's `at`/`a` attribute blob with the file
// key k and strips the fixed `MEGA{...}` JSON envelope Mega wraps every
// attribute set in.
func decryptAttr(k []uint32, attrB64 string) (name string, err error) {
	cipherBytes, err := megaBase64Decode(attrB64)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(a32ToBytes(k))
	if err != nil {
		return "", errors.Wrap(err, "mega attr cipher")
	}
	if len(cipherBytes)%aes.BlockSize != 0 {
		return "", errors.New("mega attribute blob is not block-aligned")
	}
	plain := make([]byte, len(cipherBytes))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(plain, cipherBytes)

	text := strings.TrimRight(string(plain), "\x00")
	if !strings.HasPrefix(text, "MEGA") {
		return "", errors.New("mega attribute blob missing envelope")
	}
	end := strings.LastIndexByte(text, '}')
	if end < 0 {
		return "", errors.New("mega attribute blob is not valid json")
	}

	var attrs struct {
		N string `json:"n"`
	}
	if err := json.Unmarshal([]byte(text[len("MEGA"):end+1]), &attrs); err != nil {
		return "", errors.Wrap(err, "mega attribute blob is not valid json")
	}
	return attrs.N, nil
}

// megaChunk is one (offset, length) pair a transfer is read/decrypted in.
type megaChunk struct {
	Start int64
	Size  int64
}

// getChunks mirrors Mega's chunking scheme: chunks start at 128 KiB and
// grow by 128 KiB each step up to a cap of 1 MiB, with a final remainder
// chunk covering whatever's left.
func getChunks(size int64) []megaChunk {
	const (
		start = 0x20000
		step  = 0x20000
		cap_  = 0x100000
	)
	var chunks []megaChunk
	var p int64
	s := int64(start)
	for p+s < size {
		chunks = append(chunks, megaChunk{Start: p, Size: s})
		p += s
		if s < cap_ {
			s += step
		}
	}
	chunks = append(chunks, megaChunk{Start: p, Size: size - p})
	return chunks
}

// checksum computes Mega's two-level CBC-MAC over a file's plaintext
// chunks: each chunk is CBC-encrypted in isolation (keyed by the file key,
// IV derived from it) and only its last 16-byte block is kept; that block
// is then fed through a single persistent CBC encrypter (zero IV, created
// once) whose running state across calls is the actual MAC accumulator.
type checksum struct {
	k, iv, metaMac []uint32
	block          cipher.Block
	top            cipher.BlockMode
	last           [aes.BlockSize]byte
}

func newChecksum(fileKey []uint32) (*checksum, error) {
	k, iv, metaMac := cipherKeyParts(fileKey)
	block, err := aes.NewCipher(a32ToBytes(k))
	if err != nil {
		return nil, errors.Wrap(err, "mega checksum cipher")
	}
	return &checksum{
		k: k, iv: iv, metaMac: metaMac,
		block: block,
		top:   cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)),
	}, nil
}

// update folds one plaintext chunk into the running MAC. chunk need not be
// block-aligned; it's zero-padded internally.
func (c *checksum) update(chunk []byte) {
	padded := chunk
	if m := len(padded) % aes.BlockSize; m != 0 {
		padded = append(append([]byte{}, chunk...), make([]byte, aes.BlockSize-m)...)
	}
	perChunk := cipher.NewCBCEncrypter(c.block, a32ToBytes(c.iv))
	out := make([]byte, len(padded))
	perChunk.CryptBlocks(out, padded)
	lastBlock := out[len(out)-aes.BlockSize:]
	c.top.CryptBlocks(c.last[:], lastBlock)
}

// digest folds the final MAC block into the 2-word form comparable against
// a file's stored meta_mac.
func (c *checksum) digest() [2]uint32 {
	a := bytesToA32(c.last[:])
	return [2]uint32{a[0] ^ a[1], a[2] ^ a[3]}
}

func (c *checksum) matches() bool {
	d := c.digest()
	return d[0] == c.metaMac[0] && d[1] == c.metaMac[1]
}
