// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"

	"github.com/kapowarr/kapowarr/internal/downloadclient"
	"github.com/kapowarr/kapowarr/internal/resolver"
	"github.com/kapowarr/kapowarr/internal/store"
)

// storeCredentials adapts *store.Store to resolver.CredentialSource, the
// narrow shape the link resolver needs to attach a PixelDrain credential
// (or any other source's) to a Resolved result.
type storeCredentials struct {
	store *store.Store
}

// NewStoreCredentialSource adapts s to resolver.CredentialSource for
// callers outside this package (the composition root wires the same
// adapter into both the queue and the search engine's auto-pick path).
func NewStoreCredentialSource(s *store.Store) resolver.CredentialSource {
	return storeCredentials{store: s}
}

func (c storeCredentials) CredentialFor(ctx context.Context, source string) (resolver.Credential, bool, error) {
	cred, err := c.store.GetCredential(ctx, source)
	if err != nil {
		return resolver.Credential{}, false, err
	}
	if cred == nil {
		return resolver.Credential{}, false, nil
	}
	return resolver.Credential{Username: cred.Username, Password: cred.Password, APIKey: cred.APIKey}, true, nil
}

// megaCredential looks up the configured Mega account, if any, translated
// to the shape downloadclient.Mega/MegaFolder need. A nil return means
// anonymous prelogin, which Mega always accepts as a fallback.
func megaCredential(ctx context.Context, s *store.Store) (*downloadclient.Credential, error) {
	cred, err := s.GetCredential(ctx, "mega")
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.Username == "" {
		return nil, nil
	}
	return &downloadclient.Credential{Email: cred.Username, Password: cred.Password}, nil
}

// basicAuthCredential turns a resolver.Credential carried on a Resolved
// result (PixelDrain's API key, presented as a password with an empty
// username) into the shape downloadclient.NewDirect sends as Basic auth.
func basicAuthCredential(cred *resolver.Credential) *downloadclient.Credential {
	if cred == nil {
		return nil
	}
	password := cred.APIKey
	if password == "" {
		password = cred.Password
	}
	return &downloadclient.Credential{Email: cred.Username, Password: password}
}
