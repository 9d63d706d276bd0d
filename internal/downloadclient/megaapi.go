// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/httpx"
)

const megaAPIURL = "https://g.api.mega.co.nz/cs"

// megaAPIClient is a thin wrapper over Mega's single JSON-RPC-ish endpoint:
// every call POSTs a one-element JSON array and gets back a one-element
// JSON array (or, on the rare raw-error response, a bare negative int).
type megaAPIClient struct {
	http *httpx.Client
	seq  atomic.Int64
}

func newMegaAPIClient(client *httpx.Client) *megaAPIClient {
	c := &megaAPIClient{http: client}
	var buf [4]byte
	rand.Read(buf[:])
	c.seq.Store(int64(binary.BigEndian.Uint32(buf[:]) & 0x7fffffff))
	return c
}

// call issues one request body against the node-less account endpoint (used
// for login and file metadata). sid is omitted from the URL when empty.
func (c *megaAPIClient) call(ctx context.Context, sid string, body any) (json.RawMessage, error) {
	return c.callWithNode(ctx, sid, "", body)
}

// callWithNode is call's folder-scoped counterpart: public folder listing
// and file metadata require a `n=<folder handle>` query parameter
// identifying which folder the request is scoped to.
func (c *megaAPIClient) callWithNode(ctx context.Context, sid, node string, body any) (json.RawMessage, error) {
	url := fmt.Sprintf("%s?id=%d", megaAPIURL, c.seq.Add(1))
	if sid != "" {
		url += "&sid=" + sid
	}
	if node != "" {
		url += "&n=" + node
	}

	payload, err := json.Marshal([]any{body})
	if err != nil {
		return nil, errors.Wrap(err, "mega request encode")
	}

	for attempt := 0; attempt < 5; attempt++ {
		resp, err := c.http.PostJSON(ctx, url, nil, payload)
		if err != nil {
			return nil, errors.Wrap(err, "mega api request")
		}
		text, err := httpx.ReadAll(resp)
		if err != nil {
			return nil, errors.Wrap(err, "mega api response")
		}

		var code int
		if json.Unmarshal([]byte(text), &code) == nil {
			if code == -3 {
				time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
				continue
			}
			return nil, errors.Errorf("mega api error %d", code)
		}

		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(text), &arr); err != nil || len(arr) == 0 {
			return nil, errors.New("mega api: malformed response")
		}

		if json.Unmarshal(arr[0], &code) == nil && code < 0 {
			if code == -3 {
				time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
				continue
			}
			return nil, errors.Errorf("mega api error %d", code)
		}
		return arr[0], nil
	}
	return nil, errors.New("mega api: exhausted retries on temporary unavailability")
}
