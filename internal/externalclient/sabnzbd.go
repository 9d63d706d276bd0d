// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package externalclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/httpx"
)

// usenetCategory is the fixed SABnzbd category every NZB this service adds
// is filed under.
const usenetCategory = "kapowarr"

// sabnzbdStateMapping mirrors SABnzbd's own queue/history status strings,
// collapsed onto the small State set this package exposes.
var sabnzbdStateMapping = map[string]State{
	"Downloading": StateDownloading,
	"Queued":      StateDownloading,
	"Paused":      StatePaused,
	"Checking":    StateDownloading,
	"Verifying":   StateDownloading,
	"Repairing":   StateDownloading,
	"Extracting":  StateDownloading,
	"Moving":      StateDownloading,
	"Completed":   StateComplete,
	"Failed":      StateFailed,
}

// SABnzbd adapts SABnzbd's query-string API (`/api?mode=...&apikey=...`) to
// the Client interface. Every download is identified by the nzo_id SABnzbd
// assigns it when it's added.
type SABnzbd struct {
	client  *httpx.Client
	baseURL string
	apiKey  string
}

// NewSABnzbd returns a SABnzbd client against baseURL, authenticating every
// call with apiKey as a query parameter rather than a session.
func NewSABnzbd(client *httpx.Client, baseURL, apiKey string) *SABnzbd {
	return &SABnzbd{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// Add submits an NZB URL to SABnzbd's addurl endpoint under the fixed
// kapowarr category. Only direct NZB URLs are supported, matching the
// original client; folder is unused since SABnzbd manages its own
// category-based storage layout.
func (s *SABnzbd) Add(ctx context.Context, link, folder, name string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(link), "http") {
		return "", errors.New("sabnzbd: only direct NZB URLs are supported")
	}

	params := url.Values{
		"output":   {"json"},
		"mode":     {"addurl"},
		"apikey":   {s.apiKey},
		"name":     {link},
		"cat":      {usenetCategory},
		"priority": {"0"},
	}
	if name != "" {
		params.Set("nzbname", name)
	}

	var data struct {
		Status bool     `json:"status"`
		Error  string   `json:"error"`
		NzoIDs []string `json:"nzo_ids"`
	}
	if err := s.apiCall(ctx, params, &data); err != nil {
		return "", err
	}
	if !data.Status {
		return "", errors.Errorf("sabnzbd: failed to add download: %s", data.Error)
	}
	if len(data.NzoIDs) == 0 {
		return "", errors.New("sabnzbd: add response had no nzo_id")
	}
	return data.NzoIDs[0], nil
}

// GetStatus checks the live queue first, then history, for externalID —
// mirroring SABnzbd's own split between in-progress and finished
// downloads.
func (s *SABnzbd) GetStatus(ctx context.Context, externalID string) (Status, error) {
	var queue struct {
		Queue struct {
			Slots []struct {
				NzoID   string `json:"nzo_id"`
				Status  string `json:"status"`
				MBLeft  string `json:"mbleft"`
				MB      string `json:"mb"`
				Speed   string `json:"speed"`
			} `json:"slots"`
		} `json:"queue"`
	}
	if err := s.apiCall(ctx, url.Values{"output": {"json"}, "mode": {"queue"}, "apikey": {s.apiKey}}, &queue); err != nil {
		return Status{}, err
	}
	for _, slot := range queue.Queue.Slots {
		if slot.NzoID != externalID {
			continue
		}
		mbTotal := parseFloat(slot.MB)
		mbLeft := parseFloat(slot.MBLeft)
		progress := 0.0
		if mbTotal > 0 {
			progress = (mbTotal - mbLeft) / mbTotal
		}
		return Status{
			Size:     int64(mbTotal * 1024 * 1024),
			Progress: progress,
			Speed:    int64(parseFloat(slot.Speed)),
			State:    sabnzbdStateMapping[slot.Status],
		}, nil
	}

	var history struct {
		History struct {
			Slots []struct {
				NzoID   string `json:"nzo_id"`
				Status  string `json:"status"`
				Bytes   int64  `json:"bytes"`
				Storage string `json:"storage"`
			} `json:"slots"`
		} `json:"history"`
	}
	if err := s.apiCall(ctx, url.Values{"output": {"json"}, "mode": {"history"}, "apikey": {s.apiKey}}, &history); err != nil {
		return Status{}, err
	}
	for _, slot := range history.History.Slots {
		if slot.NzoID != externalID {
			continue
		}
		state := StateComplete
		if slot.Status == "Failed" {
			state = StateFailed
		}
		return Status{Size: slot.Bytes, Progress: 1, State: state, ContentPath: slot.Storage}, nil
	}

	return Status{}, errors.Errorf("sabnzbd: no download with id %s", externalID)
}

// Remove deletes externalID from both the queue and history; SABnzbd
// silently no-ops whichever of the two it isn't found in.
func (s *SABnzbd) Remove(ctx context.Context, externalID string, deleteFiles bool) error {
	delFiles := "0"
	if deleteFiles {
		delFiles = "1"
	}
	for _, mode := range []string{"queue", "history"} {
		params := url.Values{
			"output":    {"json"},
			"mode":      {mode},
			"name":      {"delete"},
			"apikey":    {s.apiKey},
			"value":     {externalID},
			"del_files": {delFiles},
		}
		if err := s.apiCall(ctx, params, &struct{}{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SABnzbd) apiCall(ctx context.Context, params url.Values, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	resp, err := s.client.Get(ctx, s.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "sabnzbd api call")
	}
	body, err := httpx.ReadAll(resp)
	if err != nil {
		return errors.Wrap(err, "sabnzbd api call")
	}
	if err := json.Unmarshal([]byte(body), dest); err != nil {
		return errors.Wrap(err, "sabnzbd: invalid json response")
	}
	return nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

var _ Client = (*SABnzbd)(nil)
