// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

import (
	"context"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
)

const pixelDrainAPIURL = "https://pixeldrain.com/api"

// resolvePixelDrain builds the file or folder-zip API endpoint. When a
// PixelDrain credential is configured, it's carried on the result so the
// download client can attach Basic auth; the real-time transfer-quota
// check (a websocket handshake in the source's own API) is left to the download client,
// which already needs a live connection to start streaming anyway.
func resolvePixelDrain(ctx context.Context, creds CredentialSource, link string) (Resolved, error) {
	id := strings.TrimRight(link, "/")
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	if id == "" {
		return Resolved{}, linkBroken("pixeldrain link has no id")
	}

	resolved := Resolved{DownloadType: domain.DownloadTypeDirect}
	if strings.Contains(link, "/l/") {
		resolved.Kind = domain.SourcePixelDrainFolder
		resolved.PureLink = pixelDrainAPIURL + "/list/" + id + "/zip"
	} else {
		resolved.Kind = domain.SourcePixelDrain
		resolved.PureLink = pixelDrainAPIURL + "/file/" + id
	}

	if creds != nil {
		if cred, ok, err := creds.CredentialFor(ctx, "pixeldrain"); err == nil && ok {
			resolved.Credential = &cred
		}
	}
	return resolved, nil
}
