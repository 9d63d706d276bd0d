// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package timeouts centralizes the search-fan-out timeout budget: a base
// deadline, extended a little per concurrent source, capped at a hard
// ceiling so one slow mirror can't stall a whole search indefinitely.
package timeouts

import (
	"context"
	"time"
)

const (
	// DefaultSearchTimeout is the floor: a search against a single source
	// budget gets at least this long.
	DefaultSearchTimeout = 9 * time.Second

	// MaxSearchTimeout is the ceiling, regardless of source count.
	MaxSearchTimeout = 45 * time.Second

	// PerIndexerSearchTimeout is added once per source beyond the first.
	PerIndexerSearchTimeout = 1 * time.Second
)

// AdaptiveSearchTimeout scales DefaultSearchTimeout by one
// PerIndexerSearchTimeout for every source beyond the first, capped at
// MaxSearchTimeout. indexerCount <= 1 returns the default.
func AdaptiveSearchTimeout(indexerCount int) time.Duration {
	if indexerCount <= 1 {
		return DefaultSearchTimeout
	}

	timeout := DefaultSearchTimeout + time.Duration(indexerCount-1)*PerIndexerSearchTimeout
	if timeout > MaxSearchTimeout {
		return MaxSearchTimeout
	}
	return timeout
}

// WithSearchTimeout returns ctx unchanged (with a noop cancel) if it
// already carries a deadline; otherwise it applies timeout, or
// DefaultSearchTimeout if timeout is zero or negative. A nil ctx is
// treated as context.Background().
func WithSearchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
