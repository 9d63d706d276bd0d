// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/resolver"
	"github.com/kapowarr/kapowarr/internal/store"
)

// rebuildFromStore restores every persisted queue row at startup. Each
// row's link is re-resolved from scratch (a PixelDrain/Mega/MediaFire
// pure link can expire between restarts) rather than trusted verbatim;
// a row already mid-transfer when the process stopped resumes as QUEUED
// so the direct worker or external poller picks it back up cleanly.
func (q *Queue) rebuildFromStore(ctx context.Context) error {
	rows, err := q.store.ListQueue(ctx)
	if err != nil {
		return errors.Wrap(err, "list persisted queue")
	}

	creds := storeCredentials{store: q.store}

	for _, d := range rows {
		if d.State.IsTerminal() {
			continue
		}

		resolved, err := resolver.Resolve(ctx, q.httpClient, d.SourceKind, d.WebLink, creds)
		if err != nil {
			q.failRestartResolve(ctx, d, err)
			continue
		}
		d.PureLink = resolved.PureLink
		d.DownloadType = resolved.DownloadType
		d.State = domain.DownloadStateQueued
		d.Progress = 0
		d.Speed = 0

		if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateQueued); serr != nil {
			log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist requeued state")
		}

		it := &item{download: d}
		q.items[d.ID] = it

		switch {
		case isDirectGroup(d.DownloadType):
			// A direct/Mega transfer's partial file is private to the
			// process that was streaming it; it cannot be resumed, so it
			// simply re-downloads from QUEUED.
			q.order = append(q.order, d.ID)
		case d.ExternalID != "":
			// The external client is still tracking this one under its
			// own id; just resume polling it, no Add().
			d.State = domain.DownloadStateDownloading
			if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateDownloading); serr != nil {
				log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist downloading state")
			}
		default:
			q.startExternal(ctx, it)
		}
	}

	if len(q.order) > 0 {
		q.signalDirectWorker()
	}

	return nil
}

// failRestartResolve marks a row FAILED when its link can no longer be
// resolved across a restart, running the failed post-process chain
// (history, delete) without ever starting a transfer for it.
func (q *Queue) failRestartResolve(ctx context.Context, d *store.Download, err error) {
	log.Warn().Err(err).Int64("id", d.ID).Str("webLink", d.WebLink).Msg("[QUEUE] link no longer resolves, failing on restart")

	if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateFailed); serr != nil {
		log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist failed state")
	}
	d.State = domain.DownloadStateFailed

	it := &item{download: d}
	q.items[d.ID] = it

	if ferr := q.finish(ctx, it, OutcomeFailed); ferr != nil {
		log.Error().Err(ferr).Int64("id", d.ID).Msg("[QUEUE] finish after restart resolve failure failed")
	}
}
