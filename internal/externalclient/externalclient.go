// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package externalclient adapts the small set of torrent/usenet client
// operations the download queue actually needs — add, poll, remove — to
// the concrete wire protocols of qBittorrent and SABnzbd.
package externalclient

import (
	"context"
	"time"
)

// Status is a point-in-time snapshot of one external download.
type Status struct {
	Size     int64
	Progress float64 // 0..1
	Speed    int64   // bytes/sec
	State    State

	// ContentPath is the client-reported final location of the downloaded
	// payload on disk (a file or a folder), once known. Empty until the
	// client has one to report.
	ContentPath string
}

// State is the client-reported lifecycle of one external download,
// independent of the domain.DownloadState the queue tracks for it.
type State string

const (
	StateDownloading State = "downloading"
	StateSeeding      State = "seeding"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
	StatePaused       State = "paused"
	StateUnknown      State = "unknown"
)

// Client is the narrow surface the queue drives an external torrent or
// usenet client through: add a link, poll its status by external id, and
// remove it (optionally deleting the downloaded files alongside it).
type Client interface {
	Add(ctx context.Context, link, folder, name string) (externalID string, err error)
	GetStatus(ctx context.Context, externalID string) (Status, error)
	Remove(ctx context.Context, externalID string, deleteFiles bool) error
}

// pollTimeout bounds every round-trip this package makes to an external
// client; the queue polls far more often than any single call should ever
// take.
const pollTimeout = 30 * time.Second
