// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package downloadclient streams a resolved pure link straight to disk for
// the source kinds that have no external client of their own: direct HTTP
// links, and the Mega CBC-MAC protocol. Torrent/usenet transfers are driven
// by internal/externalclient instead.
package downloadclient

import (
	"context"
)

// Progress is a point-in-time snapshot a Downloader reports as it runs.
type Progress struct {
	Size       int64
	Downloaded int64
	Speed      int64 // bytes/sec, computed over the most recent chunk
}

// ProgressFunc receives a Progress snapshot after every chunk. Implementations
// must return quickly; it's called from the download's own goroutine.
type ProgressFunc func(Progress)

// Downloader runs one direct transfer to completion, reporting progress as
// it goes. Run blocks until the transfer finishes, fails, or ctx is
// canceled; Stop asks a concurrently running Run to unwind early without
// tearing down the underlying connection itself, matching how a worker
// queue cancels a transfer it no longer wants.
type Downloader interface {
	Run(ctx context.Context, onProgress ProgressFunc) (files []string, err error)
	Stop()
}

// NamingFunc resolves the on-disk file name a downloaded item's body should
// be given, independent of whatever name the remote host suggests. Callers
// pass the naming engine's render for the matched issue/volume; an empty
// return defers to the remote-supplied name.
type NamingFunc func() (nameWithoutExt string, ok bool)
