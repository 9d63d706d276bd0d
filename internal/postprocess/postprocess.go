// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package postprocess implements the download queue's fixed, per-terminal-
// state action chains: moving a finished download into its volume's
// folder, extracting and filtering a torrent's payload, converting to a
// preferred format, and recording history or a blocklist entry.
package postprocess

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/convert"
	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/queue"
	"github.com/kapowarr/kapowarr/internal/scanner"
	"github.com/kapowarr/kapowarr/internal/store"
)

// Processor implements queue.PostProcessor against the real store and
// filesystem.
type Processor struct {
	store      *store.Store
	settings   func() domain.Settings
	converters *convert.Registry
	now        func() time.Time
}

// New builds a Processor. converters may be nil, which disables the
// convert action entirely regardless of the convert setting.
func New(s *store.Store, settings func() domain.Settings, converters *convert.Registry) *Processor {
	if converters == nil {
		converters = convert.NewRegistry()
	}
	return &Processor{store: s, settings: settings, converters: converters, now: time.Now}
}

// Process runs the fixed action chain for outcome, in the order the action
// table specifies. Every action is independently idempotent-ish (dequeue,
// history, and blocklist are no-ops on their second call site since the
// queue only ever calls Process once per download), but each commits its
// own transaction before any large filesystem operation, so a crash
// mid-chain leaves the store in a consistent, resumable state rather than
// holding a lock across a long move.
func (p *Processor) Process(ctx context.Context, d *store.Download, outcome queue.Outcome) error {
	log.Info().Int64("id", d.ID).Str("outcome", outcomeName(outcome)).Msg("[POSTPROCESS] running")

	switch outcome {
	case queue.OutcomeSuccess:
		return p.success(ctx, d)
	case queue.OutcomeSuccessTorrentComplete:
		return p.successTorrentComplete(ctx, d)
	case queue.OutcomeSuccessTorrentCopyDuringSeeding:
		return p.successTorrentCopyDuringSeeding(ctx, d)
	case queue.OutcomeSuccessTorrentCopyCompleted:
		return p.successTorrentCopyCompleted(ctx, d)
	case queue.OutcomeCanceled:
		return p.canceled(ctx, d)
	case queue.OutcomeShutdown:
		return p.shutdown(ctx, d)
	case queue.OutcomeFailed:
		return p.failed(ctx, d)
	case queue.OutcomePermanentlyFailed:
		return p.permanentlyFailed(ctx, d)
	default:
		return errors.Errorf("postprocess: unknown outcome %d", outcome)
	}
}

// success is the non-torrent chain: dequeue, history, move to destination,
// scan, convert, scan again.
func (p *Processor) success(ctx context.Context, d *store.Download) error {
	if err := p.dequeue(ctx, d); err != nil {
		return err
	}
	if err := p.recordHistory(ctx, d); err != nil {
		return err
	}

	moved, err := p.moveFiles(ctx, d, d.Files)
	if err != nil {
		return err
	}

	if _, err := scanner.Scan(ctx, p.store, d.VolumeID, moved); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] scan after move failed")
	}
	p.convertAndRescan(ctx, d.VolumeID, moved)
	return nil
}

// successTorrentComplete is the COMPLETE-handling chain, run once seeding
// itself has finished: dequeue, history, move the torrent payload,
// extract relevant files, scan, convert, scan again.
func (p *Processor) successTorrentComplete(ctx context.Context, d *store.Download) error {
	if err := p.dequeue(ctx, d); err != nil {
		return err
	}
	if err := p.recordHistory(ctx, d); err != nil {
		return err
	}
	return p.extractAndScan(ctx, d, false)
}

// successTorrentCopyDuringSeeding is COPY-handling's immediate chain, run
// the instant the payload is whole (seeding continues in the background):
// history, copy the payload out, extract, scan, convert, scan again. The
// download stays queued — seedingFinished still has to reach it.
func (p *Processor) successTorrentCopyDuringSeeding(ctx context.Context, d *store.Download) error {
	if err := p.recordHistory(ctx, d); err != nil {
		return err
	}
	return p.extractAndScan(ctx, d, true)
}

// successTorrentCopyCompleted is COPY-handling's final chain, once seeding
// has also finished: dequeue, delete the original payload that was
// already copied out while seeding.
func (p *Processor) successTorrentCopyCompleted(ctx context.Context, d *store.Download) error {
	if err := p.dequeue(ctx, d); err != nil {
		return err
	}
	return p.deletePayload(d)
}

// canceled deletes whatever the download had written so far, then
// dequeues it.
func (p *Processor) canceled(ctx context.Context, d *store.Download) error {
	if err := p.deletePayload(d); err != nil {
		log.Warn().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] delete after cancel failed")
	}
	return p.dequeue(ctx, d)
}

// shutdown only deletes the in-flight queue work area; the row itself is
// left so restart can re-resolve and requeue it.
func (p *Processor) shutdown(_ context.Context, d *store.Download) error {
	if err := p.deletePayload(d); err != nil {
		log.Warn().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] delete after shutdown failed")
	}
	return nil
}

// failed dequeues, records history, and deletes whatever was downloaded.
func (p *Processor) failed(ctx context.Context, d *store.Download) error {
	if err := p.dequeue(ctx, d); err != nil {
		return err
	}
	if err := p.recordHistory(ctx, d); err != nil {
		return err
	}
	if err := p.deletePayload(d); err != nil {
		log.Warn().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] delete after failure failed")
	}
	return nil
}

// permanentlyFailed is failed plus a blocklist entry, so search and
// aggregation stop offering the same link.
func (p *Processor) permanentlyFailed(ctx context.Context, d *store.Download) error {
	if err := p.dequeue(ctx, d); err != nil {
		return err
	}
	if err := p.recordHistory(ctx, d); err != nil {
		return err
	}
	if err := p.blocklist(ctx, d); err != nil {
		log.Error().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] blocklist failed")
	}
	if err := p.deletePayload(d); err != nil {
		log.Warn().Err(err).Int64("id", d.ID).Msg("[POSTPROCESS] delete after permanent failure failed")
	}
	return nil
}

func (p *Processor) dequeue(ctx context.Context, d *store.Download) error {
	return errors.Wrap(p.store.Remove(ctx, d.ID), "dequeue download")
}

func (p *Processor) recordHistory(ctx context.Context, d *store.Download) error {
	return errors.Wrap(p.store.RecordHistory(ctx, d, p.now()), "record download history")
}

func (p *Processor) blocklist(ctx context.Context, d *store.Download) error {
	return p.store.AddToBlocklist(ctx, &store.BlocklistEntry{
		WebLink:      d.WebLink,
		WebTitle:     d.WebTitle,
		WebSubTitle:  d.WebSubTitle,
		DownloadLink: d.DownloadLink,
		Source:       string(d.SourceKind),
		VolumeID:     nullInt64(d.VolumeID),
		IssueID:      d.IssueID,
		Reason:       domain.BlocklistReasonLinkBroken,
		AddedAt:      p.now(),
	})
}

func outcomeName(o queue.Outcome) string {
	names := map[queue.Outcome]string{
		queue.OutcomeSuccess:                         "success",
		queue.OutcomeSuccessTorrentComplete:           "success_torrent_complete",
		queue.OutcomeSuccessTorrentCopyDuringSeeding:  "success_torrent_copy_during_seeding",
		queue.OutcomeSuccessTorrentCopyCompleted:      "success_torrent_copy_completed",
		queue.OutcomeCanceled:                         "canceled",
		queue.OutcomeShutdown:                         "shutdown",
		queue.OutcomeFailed:                           "failed",
		queue.OutcomePermanentlyFailed:                "permanently_failed",
	}
	if n, ok := names[o]; ok {
		return n
	}
	return "unknown"
}

var _ queue.PostProcessor = (*Processor)(nil)
