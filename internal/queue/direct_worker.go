// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/downloadclient"
	"github.com/kapowarr/kapowarr/internal/resolver"
	"github.com/kapowarr/kapowarr/internal/store"
)

// runDirectWorker drains the FIFO of direct/Mega downloads one at a time:
// at most one of them streams at any moment, matching the single
// in-process download slot. It wakes on q.wake (a new enqueue, a
// cancellation, or the previous download finishing) and otherwise sleeps.
func (q *Queue) runDirectWorker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}

		for {
			it, skipped := q.nextQueued()
			for _, s := range skipped {
				// Canceled/shut down before it ever got its turn: it never
				// opened a downloader, so there's nothing to Stop(), but the
				// chain still needs to run so history/blocklist/dequeue happen.
				outcome := OutcomeCanceled
				if s.download.State == domain.DownloadStateShutdown {
					outcome = OutcomeShutdown
				}
				if err := q.finish(context.Background(), s, outcome); err != nil {
					log.Error().Err(err).Int64("id", s.download.ID).Msg("[QUEUE] finish for never-started download failed")
				}
			}
			if it == nil {
				break
			}
			if q.ctx.Err() != nil {
				return
			}
			q.runOne(it)
		}
	}
}

// nextQueued returns the oldest still-QUEUED item in FIFO order, plus any
// items it passed over along the way that were canceled/shut down before
// ever starting.
func (q *Queue) nextQueued() (next *item, skipped []*item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.order) > 0 {
		id := q.order[0]
		it, ok := q.items[id]
		if !ok {
			q.order = q.order[1:]
			continue
		}
		switch it.download.State {
		case domain.DownloadStateQueued:
			q.activeID = id
			return it, skipped
		case domain.DownloadStateCanceled, domain.DownloadStateShutdown:
			q.order = q.order[1:]
			skipped = append(skipped, it)
			continue
		default:
			// Already running or otherwise terminal; not ours to start.
			return nil, skipped
		}
	}
	return nil, skipped
}

// runOne streams exactly one direct/Mega download end to end, then hands
// it to the post-process chain for whichever outcome it ended with.
func (q *Queue) runOne(it *item) {
	ctx := context.Background()
	d := it.download

	if err := q.store.SetState(ctx, d.ID, domain.DownloadStateDownloading); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist downloading state")
	}
	q.mu.Lock()
	d.State = domain.DownloadStateDownloading
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	downloader, err := q.buildDirectDownloader(ctx, d)
	if err != nil {
		q.failDirect(ctx, it, err)
		return
	}

	q.mu.Lock()
	it.downloader = downloader
	q.mu.Unlock()

	lastPublish := time.Now()
	files, err := downloader.Run(ctx, func(p downloadclient.Progress) {
		progress := 0.0
		if p.Size > 0 {
			progress = float64(p.Downloaded) / float64(p.Size)
		}
		if err := q.store.SetProgress(ctx, d.ID, progress, p.Speed); err != nil {
			log.Warn().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist progress")
		}
		q.mu.Lock()
		d.Progress = progress
		d.Speed = p.Speed
		q.mu.Unlock()
		if time.Since(lastPublish) >= time.Second {
			lastPublish = time.Now()
			q.publish(EventTaskStatus, d)
		}
	})

	q.mu.Lock()
	it.downloader = nil
	canceled := d.State == domain.DownloadStateCanceled
	q.mu.Unlock()

	if canceled {
		// Cancel() already persisted the state and called Stop(); this
		// goroutine is the one that observes Run unwind, so it runs the
		// canceled chain itself.
		if ferr := q.finish(ctx, it, OutcomeCanceled); ferr != nil {
			log.Error().Err(ferr).Int64("id", d.ID).Msg("[QUEUE] finish after canceled direct download failed")
		}
		return
	}

	if err != nil {
		q.failDirect(ctx, it, err)
		return
	}

	d.Files = files
	if ferr := q.store.SetState(ctx, d.ID, domain.DownloadStateImporting); ferr != nil {
		log.Error().Err(ferr).Int64("id", d.ID).Msg("[QUEUE] failed to persist importing state")
	}
	d.State = domain.DownloadStateImporting
	q.publish(EventTaskStatus, d)

	if err := q.finish(ctx, it, OutcomeSuccess); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] finish after successful direct download failed")
	}
}

// buildDirectDownloader constructs the downloadclient.Downloader matching
// d's resolved source kind, wiring in naming and whatever credential that
// source needs.
func (q *Queue) buildDirectDownloader(ctx context.Context, d *store.Download) (downloadclient.Downloader, error) {
	naming := q.buildNamingFunc(d)

	switch d.SourceKind {
	case domain.SourceMega:
		cred, err := megaCredential(ctx, q.store)
		if err != nil {
			return nil, err
		}
		return downloadclient.NewMega(q.httpClient, d.PureLink, d.TargetFolder, cred, naming), nil
	case domain.SourceMegaFolder:
		cred, err := megaCredential(ctx, q.store)
		if err != nil {
			return nil, err
		}
		return downloadclient.NewMegaFolder(q.httpClient, d.PureLink, d.TargetFolder, cred, naming), nil
	default:
		cred := q.directCredential(ctx, d)
		return downloadclient.NewDirect(q.httpClient, d.SourceKind, d.PureLink, d.TargetFolder, naming, cred), nil
	}
}

// directCredential looks up whatever source-keyed credential a plain
// HTTP(S) source (PixelDrain, WeTransfer) needs for Basic auth.
func (q *Queue) directCredential(ctx context.Context, d *store.Download) *downloadclient.Credential {
	creds := storeCredentials{store: q.store}
	cred, ok, err := creds.CredentialFor(ctx, string(d.SourceKind))
	if err != nil || !ok {
		return nil
	}
	return basicAuthCredential(&resolver.Credential{Username: cred.Username, Password: cred.Password, APIKey: cred.APIKey})
}

// failDirect classifies a Downloader error into the matching Outcome and
// runs its post-process chain.
func (q *Queue) failDirect(ctx context.Context, it *item, err error) {
	d := it.download
	outcome := classifyError(err)

	state := domain.DownloadStateFailed
	if err := q.store.SetState(ctx, d.ID, state); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist failed state")
	}
	q.mu.Lock()
	d.State = state
	q.mu.Unlock()
	q.publish(EventTaskStatus, d)

	if ferr := q.finish(ctx, it, outcome); ferr != nil {
		log.Error().Err(ferr).Int64("id", d.ID).Msg("[QUEUE] finish after failed direct download failed")
	}
}

// classifyError maps a download error to a post-process Outcome. A
// LinkBrokenError is the only case that blocklists; everything else
// (download-limit, client, transport) just fails the one download and
// leaves the queue otherwise healthy.
func classifyError(err error) Outcome {
	var linkBroken *domain.LinkBrokenError
	if errors.As(err, &linkBroken) {
		return OutcomePermanentlyFailed
	}
	return OutcomeFailed
}
