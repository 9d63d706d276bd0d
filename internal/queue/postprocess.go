// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"

	"github.com/kapowarr/kapowarr/internal/store"
)

// Outcome is the terminal condition the queue actor hands to the
// post-processor, one of the rows in the action table: which chain runs is
// decided entirely by how a download ended, not by its source kind.
type Outcome int

const (
	// OutcomeSuccess covers every non-torrent success: dequeue, history,
	// move to destination, scan, convert, scan again.
	OutcomeSuccess Outcome = iota
	// OutcomeSuccessTorrentComplete is a torrent finishing under the
	// COMPLETE seeding-handling setting, once seeding itself has finished:
	// dequeue, history, move payload, extract, scan, convert, scan.
	OutcomeSuccessTorrentComplete
	// OutcomeSuccessTorrentCopyDuringSeeding fires the instant a COPY-mode
	// torrent finishes downloading (seeding continues in the background):
	// history, copy payload, extract, scan, convert, scan, deferred
	// file-link reset.
	OutcomeSuccessTorrentCopyDuringSeeding
	// OutcomeSuccessTorrentCopyCompleted fires once a COPY-mode torrent's
	// seeding has also finished: dequeue, delete the original payload.
	OutcomeSuccessTorrentCopyCompleted
	// OutcomeCanceled: delete files, dequeue.
	OutcomeCanceled
	// OutcomeShutdown: delete files (in-flight queue work area only;
	// external downloads left untouched survive the process restart).
	OutcomeShutdown
	// OutcomeFailed: dequeue, history, delete.
	OutcomeFailed
	// OutcomePermanentlyFailed: dequeue, history, blocklist (LINK_BROKEN), delete.
	OutcomePermanentlyFailed
)

// PostProcessor runs the fixed action chain for one terminal download. The
// queue actor decides which Outcome applies; internal/postprocess decides
// what that Outcome actually does to the filesystem and the store.
type PostProcessor interface {
	Process(ctx context.Context, d *store.Download, outcome Outcome) error
}
