// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"context"
	"crypto/aes"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Credential is the narrow shape a Mega login needs: an account email plus
// its plaintext password. A nil *Credential means log in anonymously.
type Credential struct {
	Email    string
	Password string
}

// sessionCacheEntry is one cached login, keyed by credential email (or
// "anonymous"). Mega session ids are valid far longer than an hour, but an
// hour matches how long this package is willing to trust one without
// re-authenticating.
type sessionCacheEntry struct {
	sid       string
	masterKey []uint32
	expires   time.Time
}

var (
	sessionCacheMu sync.Mutex
	sessionCache   = map[string]sessionCacheEntry{}
)

const sessionTTL = time.Hour

// loginCached returns a session id and master key for cred, reusing a
// cached session when one hasn't expired. A nil cred (or a failed
// authenticated login) falls back to an anonymous session.
func loginCached(ctx context.Context, api *megaAPIClient, cred *Credential) (sid string, masterKey []uint32, err error) {
	cacheKey := "anonymous"
	if cred != nil {
		cacheKey = cred.Email
	}

	sessionCacheMu.Lock()
	if entry, ok := sessionCache[cacheKey]; ok && time.Now().Before(entry.expires) {
		sessionCacheMu.Unlock()
		return entry.sid, entry.masterKey, nil
	}
	sessionCacheMu.Unlock()

	if cred != nil {
		sid, masterKey, err = loginUser(ctx, api, cred.Email, cred.Password)
		if err == nil {
			cacheSession(cacheKey, sid, masterKey)
			return sid, masterKey, nil
		}
	}

	sid, masterKey, err = loginAnonymous(ctx, api)
	if err != nil {
		return "", nil, errors.Wrap(err, "mega anonymous login")
	}
	cacheSession("anonymous", sid, masterKey)
	return sid, masterKey, nil
}

func cacheSession(key, sid string, masterKey []uint32) {
	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()
	sessionCache[key] = sessionCacheEntry{sid: sid, masterKey: masterKey, expires: time.Now().Add(sessionTTL)}
}

// loginUser authenticates against email/password, handling both legacy
// (v1, repeated-AES key stretching) and modern (v2, PBKDF2-HMAC-SHA512)
// account versions.
func loginUser(ctx context.Context, api *megaAPIClient, email, password string) (string, []uint32, error) {
	email = strings.ToLower(email)

	preRes, err := api.call(ctx, "", map[string]any{"a": "us0", "user": email})
	if err != nil {
		return "", nil, errors.Wrap(err, "mega prelogin")
	}
	var pre struct {
		Version int    `json:"v"`
		Salt    string `json:"s"`
	}
	if err := json.Unmarshal(preRes, &pre); err != nil {
		return "", nil, errors.Wrap(err, "mega prelogin response")
	}

	var passwordKey []uint32
	var userHash string
	if pre.Version == 2 {
		salt, err := megaBase64Decode(pre.Salt)
		if err != nil {
			return "", nil, errors.Wrap(err, "mega v2 salt")
		}
		derived := pbkdf2.Key([]byte(password), salt, 100000, 32, sha512.New)
		passwordKey = bytesToA32(derived[:16])
		userHash = megaBase64Encode(derived[16:])
	} else {
		passwordKey = derivePasswordKeyV1(password)
		userHash = stringHashV1(email, passwordKey)
	}

	return processLogin(ctx, api, email, userHash, passwordKey)
}

// loginAnonymous registers (and logs into) a throwaway anonymous session:
// three random keys stand in for the normal email/password, proven via a
// self-challenge the account registration call verifies server-side.
func loginAnonymous(ctx context.Context, api *megaAPIClient) (string, []uint32, error) {
	masterKey := randomA32(4)
	passwordKey := randomA32(4)
	challenge := randomA32(4)

	encryptedMasterKey, err := encryptKeyA32(masterKey, passwordKey)
	if err != nil {
		return "", nil, err
	}
	encryptedChallenge, err := encryptKeyA32(challenge, masterKey)
	if err != nil {
		return "", nil, err
	}

	res, err := api.call(ctx, "", map[string]any{
		"a":  "up",
		"k":  a32ToBase64(encryptedMasterKey),
		"ts": a32ToBase64(challenge) + a32ToBase64(encryptedChallenge),
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "mega anonymous registration")
	}
	var user string
	if err := json.Unmarshal(res, &user); err != nil {
		return "", nil, errors.Wrap(err, "mega anonymous registration response")
	}

	return processLogin(ctx, api, user, "", passwordKey)
}

// processLogin is the login step common to both authenticated and anonymous
// sessions: it decrypts the account's master key with passwordKey, then
// derives a session id either directly (tsid) or via an RSA decrypt of the
// challenge (csid), depending on which the account uses.
func processLogin(ctx context.Context, api *megaAPIClient, user, userHash string, passwordKey []uint32) (string, []uint32, error) {
	req := map[string]any{"a": "us", "user": user}
	if userHash != "" {
		req["uh"] = userHash
	}
	res, err := api.call(ctx, "", req)
	if err != nil {
		return "", nil, errors.Wrap(err, "mega login")
	}

	var data struct {
		K     string `json:"k"`
		TSID  string `json:"tsid"`
		CSID  string `json:"csid"`
		Privk string `json:"privk"`
	}
	if err := json.Unmarshal(res, &data); err != nil {
		return "", nil, errors.Wrap(err, "mega login response")
	}

	encryptedMasterKey, err := base64ToA32(data.K)
	if err != nil {
		return "", nil, err
	}
	masterKey, err := decryptKeyA32(encryptedMasterKey, passwordKey)
	if err != nil {
		return "", nil, err
	}

	if data.TSID != "" {
		tsid, err := megaBase64Decode(data.TSID)
		if err != nil {
			return "", nil, err
		}
		if len(tsid) < 32 {
			return "", nil, errors.New("mega tsid too short")
		}
		check, err := encryptKeyA32(bytesToA32(tsid[:16]), masterKey)
		if err != nil {
			return "", nil, err
		}
		if !bytesEqual(a32ToBytes(check), tsid[16:32]) {
			return "", nil, errors.New("mega tsid verification failed")
		}
		return data.TSID, masterKey, nil
	}

	if data.CSID == "" {
		return "", nil, errors.New("mega login response has neither tsid nor csid")
	}

	encryptedPrivateKey, err := base64ToA32(data.Privk)
	if err != nil {
		return "", nil, err
	}
	privateKeyA32, err := decryptKeyA32(encryptedPrivateKey, masterKey)
	if err != nil {
		return "", nil, err
	}
	privateKeyBytes := a32ToBytes(privateKeyA32)

	p, q, d, _, err := parseRSAPrivateKeyMPI(privateKeyBytes)
	if err != nil {
		return "", nil, errors.Wrap(err, "mega rsa private key")
	}
	n := new(big.Int).Mul(p, q)

	csidBytes, err := megaBase64Decode(data.CSID)
	if err != nil {
		return "", nil, err
	}
	encryptedSID, _, err := mpiToInt(csidBytes)
	if err != nil {
		return "", nil, errors.Wrap(err, "mega csid mpi")
	}

	sidInt := new(big.Int).Exp(encryptedSID, d, n)
	sidHex := sidInt.Text(16)
	if len(sidHex)%2 != 0 {
		sidHex = "0" + sidHex
	}
	sidBytes, err := hex.DecodeString(sidHex)
	if err != nil {
		return "", nil, errors.Wrap(err, "mega sid hex")
	}
	if len(sidBytes) > 43 {
		sidBytes = sidBytes[:43]
	}
	return megaBase64Encode(sidBytes), masterKey, nil
}

// derivePasswordKeyV1 implements legacy Mega password stretching: 0x10000
// rounds of AES-ECB-encrypting a fixed constant, re-keyed each round by
// successive 4-word chunks of the UTF-8 password (the last chunk zero-padded
// if the password isn't a multiple of 4 words long).
func derivePasswordKeyV1(password string) []uint32 {
	pkey := []uint32{0x93C467E3, 0x7DB0C7A4, 0xD1BE3F81, 0x0152CB56}
	pwBytes := []byte(password)
	if m := len(pwBytes) % 4; m != 0 {
		pwBytes = append(pwBytes, make([]byte, 4-m)...)
	}
	pw32 := bytesToA32(pwBytes)
	if len(pw32) == 0 {
		pw32 = []uint32{0}
	}

	for round := 0; round < 0x10000; round++ {
		for i := 0; i < len(pw32); i += 4 {
			end := i + 4
			if end > len(pw32) {
				end = len(pw32)
			}
			key := make([]uint32, 4)
			copy(key, pw32[i:end])
			block, _ := aes.NewCipher(a32ToBytes(key))
			out := make([]byte, aes.BlockSize)
			block.Encrypt(out, a32ToBytes(pkey))
			pkey = bytesToA32(out)
		}
	}
	return pkey
}

// stringHashV1 is legacy Mega's email hash: fold the lowercased email into
// four words by XOR, then AES-ECB-encrypt that 0x4000 times keyed by the
// v1 password key, keeping words 0 and 2 of the result as the hash.
func stringHashV1(s string, aesKey []uint32) string {
	s32 := bytesToA32([]byte(s))
	h := make([]uint32, 4)
	for i, v := range s32 {
		h[i%4] ^= v
	}

	block, _ := aes.NewCipher(a32ToBytes(aesKey))
	for round := 0; round < 0x4000; round++ {
		out := make([]byte, aes.BlockSize)
		block.Encrypt(out, a32ToBytes(h))
		h = bytesToA32(out)
	}
	return a32ToBase64([]uint32{h[0], h[2]})
}

// mpiToInt parses one Mega-format MPI value: a 2-byte big-endian bit
// length, followed by ceil(bits/8) bytes of big-endian magnitude. It
// returns the value and the number of bytes consumed, so callers can walk
// several MPI values packed back-to-back (as Mega's RSA private key blob
// does).
func mpiToInt(b []byte) (*big.Int, int, error) {
	if len(b) < 2 {
		return nil, 0, errors.New("mpi value truncated")
	}
	bitLen := int(b[0])<<8 | int(b[1])
	byteLen := (bitLen + 7) / 8
	if len(b) < 2+byteLen {
		return nil, 0, errors.New("mpi value truncated")
	}
	return new(big.Int).SetBytes(b[2 : 2+byteLen]), 2 + byteLen, nil
}

// parseRSAPrivateKeyMPI walks Mega's packed RSA private key (p, q, d, u,
// each an MPI value back to back) and returns all four components; the
// caller uses only p, q and d, since plain modular exponentiation doesn't
// need u (the CRT coefficient).
func parseRSAPrivateKeyMPI(b []byte) (p, q, d, u *big.Int, err error) {
	values := make([]*big.Int, 0, 4)
	for i := 0; i < 4; i++ {
		v, n, verr := mpiToInt(b)
		if verr != nil {
			return nil, nil, nil, nil, verr
		}
		values = append(values, v)
		b = b[n:]
	}
	return values[0], values[1], values[2], values[3], nil
}

func randomA32(n int) []uint32 {
	out := make([]uint32, n)
	buf := make([]byte, 4)
	for i := range out {
		rand.Read(buf)
		out[i] = binary.BigEndian.Uint32(buf)
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
