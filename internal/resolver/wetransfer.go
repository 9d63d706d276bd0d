// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
)

// weTransferAPIFormat is a var, not a const, so tests can point it at a
// fake server instead of the real API host.
var weTransferAPIFormat = "https://wetransfer.com/api/v4/transfers/%s/download"

type weTransferRequest struct {
	Intent       string `json:"intent"`
	SecurityHash string `json:"security_hash"`
}

type weTransferResponse struct {
	DirectLink string `json:"direct_link"`
}

func resolveWeTransfer(ctx context.Context, client *httpx.Client, link string) (Resolved, error) {
	segments := strings.Split(strings.TrimRight(link, "/"), "/")
	if len(segments) < 2 {
		return Resolved{}, linkBroken("wetransfer link has no transfer id")
	}
	transferID, securityHash := segments[len(segments)-2], segments[len(segments)-1]

	body, err := json.Marshal(weTransferRequest{Intent: "entire_transfer", SecurityHash: securityHash})
	if err != nil {
		return Resolved{}, linkBroken(err.Error())
	}

	url := fmt.Sprintf(weTransferAPIFormat, transferID)
	resp, err := client.PostJSON(ctx, url, map[string]string{"x-requested-with": "XMLHttpRequest"}, body)
	if err != nil {
		return Resolved{}, linkBroken(err.Error())
	}

	raw, err := httpx.ReadAll(resp)
	if err != nil {
		return Resolved{}, linkBroken(err.Error())
	}

	var parsed weTransferResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.DirectLink == "" {
		return Resolved{}, linkBroken("wetransfer response has no direct_link")
	}

	return Resolved{Kind: domain.SourceWeTransfer, PureLink: parsed.DirectLink, DownloadType: domain.DownloadTypeDirect}, nil
}
