// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package queue is the single-actor download queue: a stable-ID FIFO of
// direct/cloud downloads run one at a time in-process, alongside torrent
// and usenet downloads started eagerly against an external client and
// polled for status. External callers enqueue and cancel through
// non-blocking methods; two workers (the direct-download drain loop and
// the external-client poller) share the queue's state behind a single
// mutex, matching the "parallel threads + one cooperative scheduler for
// the non-torrent slot" model the persistence and transport layers below
// it were built to support.
package queue

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/externalclient"
	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/internal/resolver"
	"github.com/kapowarr/kapowarr/internal/store"
)

// DefaultPollInterval is how often the external-client poller checks on
// every tracked torrent/usenet download, on a fixed 5-second cadence.
const DefaultPollInterval = 5 * time.Second

// item is the queue actor's in-memory record for one download: the
// persisted row plus whatever runtime handle is needed to interrupt it.
type item struct {
	download *store.Download

	// downloader is set only while a direct/mega download is actively
	// streaming, so Cancel/Stop can interrupt it. Nil otherwise.
	downloader interface{ Stop() }
}

// Queue is the download queue actor: a stable-ID FIFO for direct/cloud
// downloads and eager start-and-poll handling for torrent/usenet downloads.
type Queue struct {
	store      *store.Store
	httpClient *httpx.Client
	settings   func() domain.Settings

	externalClients map[domain.DownloadType]externalclient.Client
	postProcessor   PostProcessor
	pollInterval    time.Duration

	notifier *notifier

	mu       sync.Mutex
	items    map[int64]*item
	order    []int64 // FIFO order of direct/mega item IDs, oldest first
	activeID int64   // id of the one direct/mega download currently running, 0 if none

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Queue. externalClients supplies the torrent and usenet
// backends (keyed by domain.DownloadTypeTorrent / DownloadTypeUsenet); a
// nil entry means that transport isn't configured and downloads of that
// type fail immediately with ClientNotWorkingError. settings is called
// fresh on every decision point so a live settings change (seeding
// handling, rename-on-download) takes effect without restarting the queue.
func New(s *store.Store, httpClient *httpx.Client, settings func() domain.Settings, externalClients map[domain.DownloadType]externalclient.Client, pp PostProcessor) *Queue {
	return &Queue{
		store:           s,
		httpClient:      httpClient,
		settings:        settings,
		externalClients: externalClients,
		postProcessor:   pp,
		pollInterval:    DefaultPollInterval,
		notifier:        newNotifier(),
		items:           make(map[int64]*item),
		wake:            make(chan struct{}, 1),
	}
}

// Subscribe returns a stream of queue events; call the returned func to
// unsubscribe.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	return q.notifier.Subscribe()
}

// Start rebuilds the queue from persisted rows (restart safety) and
// launches the direct-download worker and the external-client poller.
func (q *Queue) Start(ctx context.Context) error {
	q.ctx, q.cancel = context.WithCancel(ctx)

	if err := q.rebuildFromStore(q.ctx); err != nil {
		return errors.Wrap(err, "rebuild queue from store")
	}

	q.wg.Add(2)
	go q.runDirectWorker()
	go q.runPoller()

	return nil
}

// Stop transitions every in-flight download to SHUTDOWN: in-process
// streams are interrupted, external downloads are left intact (only
// marked), and the SHUTDOWN post-process chain runs for whatever this
// process itself was writing to disk. It then waits for both workers to
// exit.
func (q *Queue) Stop() {
	if q.cancel == nil {
		return
	}

	q.mu.Lock()
	var toShutdown []*item
	for _, it := range q.items {
		if it.download.State.IsTerminal() {
			continue
		}
		toShutdown = append(toShutdown, it)
	}
	q.mu.Unlock()

	for _, it := range toShutdown {
		q.shutdownItem(it)
	}

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) shutdownItem(it *item) {
	ctx := context.Background()
	d := it.download

	if it.downloader != nil {
		it.downloader.Stop()
	}

	if err := q.store.SetState(ctx, d.ID, domain.DownloadStateShutdown); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] failed to persist shutdown state")
	}
	d.State = domain.DownloadStateShutdown
	q.publish(EventTaskStatus, d)

	if it.downloader != nil {
		// Only in-process transfers wrote into our private download
		// folder; external downloads are left for the external client to
		// keep owning until a future restart re-resolves them.
		if q.postProcessor != nil {
			if err := q.postProcessor.Process(ctx, d, OutcomeShutdown); err != nil {
				log.Error().Err(err).Int64("id", d.ID).Msg("[QUEUE] shutdown post-process failed")
			}
		}
	}
}

// EnqueueParams is what a caller (manual download selection, or the
// search engine's auto-pick) supplies to add one download to the queue.
// The link must already have been resolved via internal/resolver — the
// queue only re-resolves on its own during restart rebuild.
type EnqueueParams struct {
	VolumeID int64
	IssueID  sql.NullInt64
	Covered  domain.Number

	Resolved resolver.Resolved

	SourceName  string
	WebLink     string
	WebTitle    string
	WebSubTitle string
	Title       string
}

// Enqueue persists a new queue row and starts it: torrent/usenet
// downloads are handed to their external client immediately, direct/mega
// downloads join the strict-FIFO in-process slot.
func (q *Queue) Enqueue(ctx context.Context, p EnqueueParams) (int64, error) {
	settings := q.settings()

	covered := p.Covered
	d := &store.Download{
		VolumeID:     p.VolumeID,
		IssueID:      p.IssueID,
		SourceKind:   p.Resolved.Kind,
		SourceName:   p.SourceName,
		WebLink:      p.WebLink,
		WebTitle:     p.WebTitle,
		WebSubTitle:  p.WebSubTitle,
		DownloadLink: p.WebLink,
		PureLink:     p.Resolved.PureLink,
		DownloadType: p.Resolved.DownloadType,
		Title:        p.Title,
		TargetFolder: settings.DownloadFolder,
		State:        domain.DownloadStateQueued,
		EnqueuedAt:   time.Now(),
	}
	if covered.IsSet() {
		d.CoveredStart, d.CoveredEnd = coveredBounds(covered)
	}

	id, err := q.store.Enqueue(ctx, d)
	if err != nil {
		return 0, errors.Wrap(err, "persist queued download")
	}
	d.ID = id

	it := &item{download: d}

	q.mu.Lock()
	q.items[id] = it
	if isDirectGroup(d.DownloadType) {
		q.order = append(q.order, id)
	}
	q.mu.Unlock()

	q.publish(EventTaskAdded, d)
	q.publish(EventQueueAdded, d)

	if isDirectGroup(d.DownloadType) {
		q.signalDirectWorker()
	} else {
		q.startExternal(ctx, it)
	}

	return id, nil
}

// Cancel transitions a download to CANCELED: an in-process stream is
// interrupted at its next chunk boundary, an external download is removed
// (deleting its files) immediately. For an in-process stream the canceled
// post-process chain runs once the direct worker observes the new state;
// for an external download Cancel runs it itself.
func (q *Queue) Cancel(ctx context.Context, id int64) error {
	q.mu.Lock()
	it, ok := q.items[id]
	q.mu.Unlock()
	if !ok {
		return errors.Errorf("queue: no such download %d", id)
	}
	if it.download.State.IsTerminal() {
		return nil
	}

	if err := q.store.SetState(ctx, id, domain.DownloadStateCanceled); err != nil {
		return errors.Wrap(err, "persist canceled state")
	}

	q.mu.Lock()
	it.download.State = domain.DownloadStateCanceled
	q.mu.Unlock()
	q.publish(EventTaskStatus, it.download)

	if isDirectGroup(it.download.DownloadType) {
		if it.downloader != nil {
			it.downloader.Stop()
		}
		// If it hasn't started streaming yet, the direct worker observes
		// CANCELED the next time it looks at the FIFO and skips it there.
		q.signalDirectWorker()
		return nil
	}

	client := q.externalClients[it.download.DownloadType]
	if client == nil {
		return q.finish(ctx, it, OutcomeCanceled)
	}
	if err := client.Remove(ctx, it.download.ExternalID, true); err != nil {
		log.Warn().Err(err).Int64("id", id).Msg("[QUEUE] external remove on cancel failed")
	}
	return q.finish(ctx, it, OutcomeCanceled)
}

// List returns a snapshot of every tracked download, ordered by enqueue
// time (the persisted ListQueue order).
func (q *Queue) List(ctx context.Context) ([]*store.Download, error) {
	return q.store.ListQueue(ctx)
}

// finish runs the post-process chain for a terminal outcome and drops the
// download from in-memory tracking. It is never called for a torrent
// that has only entered seeding under COPY handling — that still has a
// later terminal transition (seedingFinished) to reach.
func (q *Queue) finish(ctx context.Context, it *item, outcome Outcome) error {
	d := it.download

	if q.postProcessor != nil {
		if err := q.postProcessor.Process(ctx, d, outcome); err != nil {
			log.Error().Err(err).Int64("id", d.ID).Int("outcome", int(outcome)).Msg("[QUEUE] post-process failed")
			return err
		}
	}

	q.publish(EventTaskEnded, d)
	q.publish(EventQueueEnded, d)

	q.mu.Lock()
	delete(q.items, d.ID)
	q.removeFromOrder(d.ID)
	if q.activeID == d.ID {
		q.activeID = 0
	}
	q.mu.Unlock()

	if isDirectGroup(d.DownloadType) {
		q.signalDirectWorker()
	}
	return nil
}

func (q *Queue) removeFromOrder(id int64) {
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *Queue) signalDirectWorker() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) publish(t EventType, d *store.Download) {
	q.notifier.publish(Event{Type: t, DownloadID: d.ID, State: string(d.State), Progress: d.Progress, Speed: d.Speed})
}

// isDirectGroup reports whether dt occupies the single in-process
// download slot (direct-HTTP and Mega transfers) rather than being
// delegated to an external client.
func isDirectGroup(dt domain.DownloadType) bool {
	return dt == domain.DownloadTypeDirect || dt == domain.DownloadTypeMega
}

// coveredBounds renders a domain.Number as the (start, end) pair
// store.Download persists it as.
func coveredBounds(n domain.Number) (sql.NullFloat64, sql.NullFloat64) {
	lo, hi := n.Bounds()
	return sql.NullFloat64{Float64: lo, Valid: true}, sql.NullFloat64{Float64: hi, Valid: true}
}
