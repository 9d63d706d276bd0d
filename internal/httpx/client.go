// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package httpx provides the single retrying HTTP client every
// network-facing component (aggregator, resolver, download clients) shares,
// plus shared Cloudflare-style challenge-solver plumbing.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

// retryableStatus is the fixed retry forcelist: 5xx only.
func retryableStatus(code int) bool { return code >= 500 && code <= 599 }

// Client wraps *http.Client with the exponential-backoff retry policy and
// optional challenge-solver fallback.
type Client struct {
	HTTP     *http.Client
	UserAgent string
	Solver   ChallengeSolver
}

// New builds a Client with a sane default timeout. Callers needing a
// different transport (e.g. a proxy) set HTTP directly afterwards.
func New(userAgent string) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		UserAgent: userAgent,
	}
}

// Get performs an HTTP GET against url, retrying 5 times with a 0.1s base
// exponential backoff on 5xx responses or transport errors. A
// `cf-mitigated: challenge` response is solved once via Solver, if set, and
// retried a single additional time with the solver's UA and cookies.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, url, headers)
}

// PostJSON POSTs a JSON-encoded body, with the same retry and
// challenge-solving behavior as Get.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body []byte) (*http.Response, error) {
	return c.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, url, headers)
}

// Do builds and sends a request via buildReq (called fresh on every
// retry attempt, since a request body can only be read once), retrying 5
// times with a 0.1s base exponential backoff on 5xx responses or
// transport errors. A `cf-mitigated: challenge` response is solved
// once via Solver, if set, and retried a single additional time with the
// solver's UA and cookies.
func (c *Client) Do(ctx context.Context, buildReq func() (*http.Request, error), url string, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := retry.Do(
		func() error {
			req, err := buildReq()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", c.UserAgent)
			for k, v := range headers {
				req.Header.Set(k, v)
			}

			r, err := c.HTTP.Do(req)
			if err != nil {
				return err
			}

			if r.Header.Get("cf-mitigated") == "challenge" && c.Solver != nil {
				r.Body.Close()
				solved, serr := c.solveAndRetry(ctx, buildReq, url, headers)
				if serr != nil {
					return retry.Unrecoverable(serr)
				}
				resp = solved
				return nil
			}

			if retryableStatus(r.StatusCode) {
				r.Body.Close()
				return errors.Errorf("transient status %d fetching %s", r.StatusCode, url)
			}

			resp = r
			return nil
		},
		retry.Attempts(6),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, errors.Wrap(err, "fetch")
	}
	return resp, nil
}

// solveAndRetry asks the solver for a User-Agent and cookie jar for url
// and replays the request once with them attached.
func (c *Client) solveAndRetry(ctx context.Context, buildReq func() (*http.Request, error), url string, headers map[string]string) (*http.Response, error) {
	solution, err := c.Solver.Solve(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "solve challenge")
	}

	req, err := buildReq()
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", solution.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range solution.Cookies {
		req.AddCookie(cookie)
	}

	return c.HTTP.Do(req)
}

// ReadAll drains and closes resp.Body, a convenience for callers that only
// want the text of a page.
func ReadAll(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response body")
	}
	return string(b), nil
}
