// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httpx

import (
	"context"
	"net/http"
)

// ChallengeSolution is what the pluggable challenge-solver service returns
// for a given URL: a User-Agent and cookie jar good enough to pass the
// site's bot check once attached to the retried request.
type ChallengeSolution struct {
	UserAgent string
	Cookies   []*http.Cookie
}

// ChallengeSolver is the process-global Cloudflare-challenge collaborator:
// a `sessions.create` call happens once at init, then Solve is
// called per-URL on demand.
type ChallengeSolver interface {
	Solve(ctx context.Context, url string) (ChallengeSolution, error)
}
