// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/externalclient"
)

// startExternal hands a torrent/usenet download to its external client
// immediately (these start eagerly and coexist, unlike the single
// direct/Mega slot). Add failures fail just this one download.
func (q *Queue) startExternal(ctx context.Context, it *item) {
	d := it.download

	client := q.externalClients[d.DownloadType]
	if client == nil {
		q.failExternal(ctx, it, &domain.ClientNotWorkingError{Desc: string(d.DownloadType) + " client not configured"})
		return
	}

	externalID, err := client.Add(ctx, d.PureLink, d.TargetFolder, d.Title)
	if err != nil {
		q.failExternal(ctx, it, &domain.ClientNotWorkingError{Desc: err.Error()})
		return
	}

	if err := q.store.SetExternalID(ctx, d.ID, externalID); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist external id")
	}
	if err := q.store.SetState(ctx, d.ID, domain.DownloadStateDownloading); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist downloading state")
	}

	q.mu.Lock()
	d.ExternalID = externalID
	d.State = domain.DownloadStateDownloading
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)
}

func (q *Queue) failExternal(ctx context.Context, it *item, err error) {
	d := it.download
	log.Warn().Err(err).Int64("id", d.ID).Str("source", string(d.SourceKind)).Msg("[QUEUE] external download failed to start")

	if d.ExternalID != "" {
		if client := q.externalClients[d.DownloadType]; client != nil {
			if rerr := client.Remove(ctx, d.ExternalID, true); rerr != nil {
				log.Warn().Err(rerr).Int64("id", d.ID).Msg("[QUEUE] external remove on failure failed")
			}
		}
	}

	if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateFailed); serr != nil {
		log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist failed state")
	}
	q.mu.Lock()
	d.State = domain.DownloadStateFailed
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	if ferr := q.finish(ctx, it, OutcomeFailed); ferr != nil {
		log.Error().Err(ferr).Int64("id", d.ID).Msg("[QUEUE] finish after failed external download failed")
	}
}

// runPoller checks every tracked torrent/usenet download's status on a
// fixed cadence (5 seconds) and drives each one's state machine,
// including the seeding-handling rules for torrents.
func (q *Queue) runPoller() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.pollOnce()
		}
	}
}

func (q *Queue) pollOnce() {
	ctx := context.Background()

	q.mu.Lock()
	var pending []*item
	for _, it := range q.items {
		d := it.download
		if isDirectGroup(d.DownloadType) {
			continue
		}
		if d.State.IsTerminal() {
			continue
		}
		pending = append(pending, it)
	}
	q.mu.Unlock()

	for _, it := range pending {
		q.pollItem(ctx, it)
	}
}

func (q *Queue) pollItem(ctx context.Context, it *item) {
	d := it.download
	client := q.externalClients[d.DownloadType]
	if client == nil {
		return
	}

	status, err := client.GetStatus(ctx, d.ExternalID)
	if err != nil {
		q.failExternal(ctx, it, &domain.ClientNotWorkingError{Desc: err.Error()})
		return
	}

	if err := q.store.SetProgress(ctx, d.ID, status.Progress, status.Speed); err != nil {
		log.Warn().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist progress")
	}
	q.mu.Lock()
	d.Progress = status.Progress
	d.Speed = status.Speed
	d.Size = status.Size
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	if status.ContentPath != "" && (len(d.Files) != 1 || d.Files[0] != status.ContentPath) {
		if err := q.store.SetFiles(ctx, d.ID, []string{status.ContentPath}); err != nil {
			log.Warn().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist content path")
		}
		q.mu.Lock()
		d.Files = []string{status.ContentPath}
		q.mu.Unlock()
	}

	switch status.State {
	case externalclient.StateFailed:
		q.failExternal(ctx, it, &domain.ClientNotWorkingError{Desc: "external client reports failure"})
	case externalclient.StateComplete:
		// Usenet has no seeding phase: complete means done.
		q.completeExternal(ctx, it)
	case externalclient.StateSeeding:
		q.enterSeeding(ctx, it)
	case externalclient.StatePaused:
		// A torrent that was seeding and is now paused has hit its
		// seed-time/ratio limit: seeding itself is over.
		if d.State == domain.DownloadStateSeeding {
			q.seedingFinished(ctx, it)
		}
	}
}

// completeExternal runs when an external transfer reports it is simply
// done (usenet, or any client with no seeding concept).
func (q *Queue) completeExternal(ctx context.Context, it *item) {
	d := it.download
	if d.State == domain.DownloadStateImporting {
		return
	}
	if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateImporting); serr != nil {
		log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist importing state")
	}
	q.mu.Lock()
	d.State = domain.DownloadStateImporting
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	if err := q.finish(ctx, it, OutcomeSuccess); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] finish after completed external download failed")
	}
}

// enterSeeding handles the transition from downloading to seeding for a
// torrent: COPY-mode handling runs its during-seeding chain immediately
// since the payload is already whole; COMPLETE-mode handling waits for
// seeding itself to finish before doing anything with the files.
func (q *Queue) enterSeeding(ctx context.Context, it *item) {
	d := it.download
	if d.State == domain.DownloadStateSeeding {
		return
	}
	if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateSeeding); serr != nil {
		log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist seeding state")
	}
	q.mu.Lock()
	d.State = domain.DownloadStateSeeding
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	if q.settings().SeedingHandling == domain.SeedingHandlingCopy {
		if err := q.copyDuringSeeding(ctx, it); err != nil {
			log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] copy-during-seeding post-process failed")
		}
	}
}

// copyDuringSeeding runs the COPY-mode "during seeding" chain without
// removing the item from tracking, since seedingFinished still needs to
// reach it later.
func (q *Queue) copyDuringSeeding(ctx context.Context, it *item) error {
	if q.postProcessor == nil {
		return nil
	}
	return q.postProcessor.Process(ctx, it.download, OutcomeSuccessTorrentCopyDuringSeeding)
}

// seedingFinished fires once a torrent stops seeding: COMPLETE-mode
// handling does its entire move/extract/scan chain only now; COPY-mode
// handling just deletes the original payload it already copied out of.
func (q *Queue) seedingFinished(ctx context.Context, it *item) {
	d := it.download

	var outcome Outcome
	switch q.settings().SeedingHandling {
	case domain.SeedingHandlingCopy:
		outcome = OutcomeSuccessTorrentCopyCompleted
	default:
		outcome = OutcomeSuccessTorrentComplete
	}

	if serr := q.store.SetState(ctx, d.ID, domain.DownloadStateImporting); serr != nil {
		log.Error().Err(serr).Int64("id", d.ID).Msg("[QUEUE] failed to persist importing state")
	}
	q.mu.Lock()
	d.State = domain.DownloadStateImporting
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	if err := q.finish(ctx, it, outcome); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] finish after seeding completion failed")
	}
}
