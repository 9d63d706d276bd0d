// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package externalclient

import (
	"context"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/pkg/hashutil"
)

// kapowarrCategory is the fixed qBittorrent category every torrent this
// service adds is tagged with, so it can be told apart from torrents added
// by anything else sharing the same qBittorrent instance.
const kapowarrCategory = "kapowarr"

// QBittorrent adapts a github.com/autobrr/go-qbittorrent client to the
// Client interface. It authenticates once at construction by POSTing
// credentials and letting the library hold onto the resulting session
// cookie for every call after that, and it identifies torrents solely by
// their magnet info-hash — the external id this package hands back from
// Add is always the lowercase 40-character hex hash.
type QBittorrent struct {
	client *qbt.Client
}

// NewQBittorrent logs into host with username/password and returns a ready
// QBittorrent client.
func NewQBittorrent(ctx context.Context, host, username, password string) (*QBittorrent, error) {
	client := qbt.NewClient(qbt.Config{
		Host:     host,
		Username: username,
		Password: password,
		Timeout:  30,
	})

	loginCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()
	if err := client.LoginCtx(loginCtx); err != nil {
		return nil, errors.Wrap(err, "qbittorrent login")
	}

	return &QBittorrent{client: client}, nil
}

// Add submits a magnet link to qBittorrent under the fixed kapowarr
// category, saving into folder. name is unused: qBittorrent names
// torrents from their own metadata, not a caller-supplied string.
func (q *QBittorrent) Add(ctx context.Context, link, folder, name string) (string, error) {
	hash, err := magnetInfoHash(link)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	options := map[string]string{
		"category": kapowarrCategory,
		"savepath": folder,
	}
	if err := q.client.AddTorrentFromUrlCtx(ctx, link, options); err != nil {
		return "", errors.Wrap(err, "qbittorrent add torrent")
	}

	return hash, nil
}

// GetStatus reports progress, size, and speed for the torrent identified
// by its info-hash.
func (q *QBittorrent) GetStatus(ctx context.Context, externalID string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	torrents, err := q.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{externalID}})
	if err != nil {
		return Status{}, errors.Wrap(err, "qbittorrent get torrents")
	}
	if len(torrents) == 0 {
		return Status{}, errors.Errorf("qbittorrent: no torrent with hash %s", externalID)
	}

	t := torrents[0]
	return Status{
		Size:        t.Size,
		Progress:    t.Progress,
		Speed:       t.DlSpeed,
		State:       qbittorrentState(t.State),
		ContentPath: t.ContentPath,
	}, nil
}

// Remove deletes the torrent identified by its info-hash, optionally
// deleting its downloaded files alongside it.
func (q *QBittorrent) Remove(ctx context.Context, externalID string, deleteFiles bool) error {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	if err := q.client.DeleteTorrentsCtx(ctx, []string{externalID}, deleteFiles); err != nil {
		return errors.Wrap(err, "qbittorrent delete torrent")
	}
	return nil
}

func qbittorrentState(s qbt.TorrentState) State {
	switch s {
	case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp, qbt.TorrentStateForcedUp:
		return StateSeeding
	case qbt.TorrentStateDownloading, qbt.TorrentStateStalledDl, qbt.TorrentStateForcedDl, qbt.TorrentStateMetaDl:
		return StateDownloading
	case qbt.TorrentStatePausedUp, qbt.TorrentStatePausedDl:
		return StatePaused
	case qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
		return StateFailed
	default:
		return StateUnknown
	}
}

// magnetInfoHash pulls the 40-character hex BTIH out of a magnet URI built
// by the link resolver. Every magnet this service ever adds was built by
// that resolver, so the "xt=urn:btih:" form is the only one handled.
func magnetInfoHash(magnet string) (string, error) {
	const marker = "xt=urn:btih:"
	idx := strings.Index(magnet, marker)
	if idx < 0 {
		return "", errors.Errorf("magnet link has no btih info-hash: %s", magnet)
	}
	rest := magnet[idx+len(marker):]
	if amp := strings.IndexByte(rest, '&'); amp >= 0 {
		rest = rest[:amp]
	}
	if len(rest) != 40 {
		return "", errors.Errorf("magnet info-hash has unexpected length: %s", rest)
	}
	return hashutil.Normalize(rest), nil
}

var _ Client = (*QBittorrent)(nil)
