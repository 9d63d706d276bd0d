// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/externalclient"
	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/internal/resolver"
	"github.com/kapowarr/kapowarr/internal/store"
)

// directChunkSize mirrors internal/downloadclient's unexported constant so
// these tests can construct a body that spans more than one chunk read,
// the granularity at which Cancel actually interrupts an in-flight stream.
const directChunkSize = 4 * 1024 * 1024

type fakeOutcome struct {
	id      int64
	outcome Outcome
}

type fakePostProcessor struct {
	mu    sync.Mutex
	calls []fakeOutcome
}

func (f *fakePostProcessor) Process(_ context.Context, d *store.Download, outcome Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeOutcome{id: d.ID, outcome: outcome})
	return nil
}

func (f *fakePostProcessor) outcomes() []fakeOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeOutcome, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestStore(t *testing.T) (*store.Store, int64) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rfID, err := s.CreateRootFolder(context.Background(), t.TempDir())
	require.NoError(t, err)
	volID, err := s.CreateVolume(context.Background(), &store.Volume{
		CatalogueID: "cv:1", Title: "Hellboy", Folder: "Hellboy", RootFolderID: rfID,
	})
	require.NoError(t, err)
	return s, volID
}

func testSettings() func() domain.Settings {
	settings := domain.DefaultSettings()
	settings.RenameDownloadedFiles = false
	return func() domain.Settings { return settings }
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// slowTwoChunkServer writes exactly one chunk's worth of bytes, sleeps
// (simulating a slow remote), then writes a second small chunk and closes.
// A Cancel landing during the sleep is observed at the next chunk boundary,
// matching the chunk-granularity interruption contract.
func slowTwoChunkServer(delay time.Duration) *httptest.Server {
	first := make([]byte, directChunkSize)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(first)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(delay)
		w.Write([]byte("tail"))
	}))
}

func fastServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func enqueueDirect(t *testing.T, ctx context.Context, q *Queue, volID int64, link string) int64 {
	t.Helper()
	id, err := q.Enqueue(ctx, EnqueueParams{
		VolumeID: volID,
		Resolved: resolver.Resolved{Kind: domain.SourceDirect, PureLink: link, DownloadType: domain.DownloadTypeDirect},
		WebLink:  link,
		Title:    fmt.Sprintf("issue-%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	return id
}

// TestDirectFIFO_CancelFirstLetsSecondRun exercises the two-queued-download
// cancellation scenario: canceling the in-flight download removes its
// tracking and frees the single direct slot for the next queued item.
func TestDirectFIFO_CancelFirstLetsSecondRun(t *testing.T) {
	s, volID := newTestStore(t)
	ctx := context.Background()

	srvA := slowTwoChunkServer(200 * time.Millisecond)
	defer srvA.Close()
	srvB := fastServer("second download body")
	defer srvB.Close()

	pp := &fakePostProcessor{}
	q := New(s, httpx.New("kapowarr-test"), testSettings(), nil, pp)
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	idA := enqueueDirect(t, ctx, q, volID, srvA.URL)
	idB := enqueueDirect(t, ctx, q, volID, srvB.URL)

	waitFor(t, time.Second, func() bool {
		rows, _ := s.ListQueue(ctx)
		for _, r := range rows {
			if r.ID == idA && r.State == domain.DownloadStateDownloading {
				return true
			}
		}
		return false
	})

	require.NoError(t, q.Cancel(ctx, idA))

	waitFor(t, 2*time.Second, func() bool {
		for _, o := range pp.outcomes() {
			if o.id == idA && o.outcome == OutcomeCanceled {
				return true
			}
		}
		return false
	})

	waitFor(t, 2*time.Second, func() bool {
		rows, _ := s.ListQueue(ctx)
		for _, r := range rows {
			if r.ID == idB && (r.State == domain.DownloadStateImporting || r.State == domain.DownloadStateDownloading) {
				return true
			}
		}
		return false
	})

	outcomes := pp.outcomes()
	var sawBSuccess bool
	for _, o := range outcomes {
		if o.id == idB && o.outcome == OutcomeSuccess {
			sawBSuccess = true
		}
	}
	assert.True(t, sawBSuccess, "second queued download should complete once the slot frees up")
}

// TestDirectDownload_FailureDoesNotBlocklist exercises a plain transport
// failure (not a resolver-level LinkBrokenError): the download fails but
// nothing is blocklisted.
func TestDirectDownload_FailureDoesNotBlocklist(t *testing.T) {
	s, volID := newTestStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pp := &fakePostProcessor{}
	q := New(s, httpx.New("kapowarr-test"), testSettings(), nil, pp)
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	id := enqueueDirect(t, ctx, q, volID, srv.URL)

	// httpx retries the 500 five times with exponential backoff from 0.1s,
	// about 3.1s in all before the failure reaches the queue.
	waitFor(t, 5*time.Second, func() bool {
		for _, o := range pp.outcomes() {
			if o.id == id {
				return true
			}
		}
		return false
	})

	outcomes := pp.outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeFailed, outcomes[0].outcome)

	contains, err := s.ContainsLink(ctx, "", srv.URL)
	require.NoError(t, err)
	assert.False(t, contains, "a plain transport failure must not blocklist the link")
}

// fakeExternalClient is a scripted externalclient.Client: GetStatus walks
// through a fixed sequence of statuses, one per call, holding on the last.
type fakeExternalClient struct {
	mu       sync.Mutex
	sequence []externalclient.Status
	idx      int
	removed  bool
}

func (f *fakeExternalClient) Add(_ context.Context, _, _, _ string) (string, error) {
	return "ext-1", nil
}

func (f *fakeExternalClient) GetStatus(_ context.Context, _ string) (externalclient.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.sequence[f.idx]
	if f.idx < len(f.sequence)-1 {
		f.idx++
	}
	return st, nil
}

func (f *fakeExternalClient) Remove(_ context.Context, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = true
	return nil
}

// TestTorrentSeedingHandlingComplete walks a torrent through
// downloading -> seeding -> paused and checks that, under COMPLETE
// seeding handling, the whole move/extract/scan chain only runs once
// seeding itself has ended.
func TestTorrentSeedingHandlingComplete(t *testing.T) {
	s, volID := newTestStore(t)
	ctx := context.Background()

	client := &fakeExternalClient{sequence: []externalclient.Status{
		{State: externalclient.StateDownloading, Progress: 0.1},
		{State: externalclient.StateSeeding, Progress: 1},
		{State: externalclient.StateSeeding, Progress: 1},
		{State: externalclient.StatePaused, Progress: 1},
	}}

	settings := domain.DefaultSettings()
	settings.SeedingHandling = domain.SeedingHandlingComplete
	pp := &fakePostProcessor{}
	q := New(s, httpx.New("kapowarr-test"), func() domain.Settings { return settings },
		map[domain.DownloadType]externalclient.Client{domain.DownloadTypeTorrent: client}, pp)
	q.pollInterval = 10 * time.Millisecond
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	id, err := q.Enqueue(ctx, EnqueueParams{
		VolumeID: volID,
		Resolved: resolver.Resolved{Kind: domain.SourceTorrent, PureLink: "magnet:?xt=urn:btih:deadbeef", DownloadType: domain.DownloadTypeTorrent},
		WebLink:  "magnet:?xt=urn:btih:deadbeef",
		Title:    "torrent test",
	})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		for _, o := range pp.outcomes() {
			if o.id == id && o.outcome == OutcomeSuccessTorrentComplete {
				return true
			}
		}
		return false
	})

	for _, o := range pp.outcomes() {
		assert.NotEqual(t, OutcomeSuccessTorrentCopyDuringSeeding, o.outcome,
			"COMPLETE handling never runs the during-seeding copy chain")
	}
}

// TestTorrentSeedingHandlingCopy checks that COPY handling runs its
// during-seeding chain as soon as seeding starts, then the completed-copy
// chain once seeding ends, in that order.
func TestTorrentSeedingHandlingCopy(t *testing.T) {
	s, volID := newTestStore(t)
	ctx := context.Background()

	client := &fakeExternalClient{sequence: []externalclient.Status{
		{State: externalclient.StateDownloading, Progress: 0.1},
		{State: externalclient.StateSeeding, Progress: 1},
		{State: externalclient.StateSeeding, Progress: 1},
		{State: externalclient.StatePaused, Progress: 1},
	}}

	settings := domain.DefaultSettings()
	settings.SeedingHandling = domain.SeedingHandlingCopy
	pp := &fakePostProcessor{}
	q := New(s, httpx.New("kapowarr-test"), func() domain.Settings { return settings },
		map[domain.DownloadType]externalclient.Client{domain.DownloadTypeTorrent: client}, pp)
	q.pollInterval = 10 * time.Millisecond
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	id, err := q.Enqueue(ctx, EnqueueParams{
		VolumeID: volID,
		Resolved: resolver.Resolved{Kind: domain.SourceTorrent, PureLink: "magnet:?xt=urn:btih:cafe", DownloadType: domain.DownloadTypeTorrent},
		WebLink:  "magnet:?xt=urn:btih:cafe",
		Title:    "torrent copy test",
	})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		for _, o := range pp.outcomes() {
			if o.id == id && o.outcome == OutcomeSuccessTorrentCopyCompleted {
				return true
			}
		}
		return false
	})

	var sawDuring, sawCompleted bool
	var duringIdx, completedIdx int
	for i, o := range pp.outcomes() {
		if o.id != id {
			continue
		}
		if o.outcome == OutcomeSuccessTorrentCopyDuringSeeding {
			sawDuring = true
			duringIdx = i
		}
		if o.outcome == OutcomeSuccessTorrentCopyCompleted {
			sawCompleted = true
			completedIdx = i
		}
	}
	require.True(t, sawDuring)
	require.True(t, sawCompleted)
	assert.Less(t, duringIdx, completedIdx, "the during-seeding copy chain must run before the completed-copy chain")
}
