// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package externalclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/httpx"
)

func TestSABnzbdAdd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "addurl", r.URL.Query().Get("mode"))
		assert.Equal(t, "kapowarr", r.URL.Query().Get("cat"))
		w.Write([]byte(`{"status": true, "nzo_ids": ["SABnzbd_nzo_123"]}`))
	}))
	defer srv.Close()

	client := NewSABnzbd(httpx.New("kapowarr-test"), srv.URL, "apikey123")
	id, err := client.Add(context.Background(), "https://example.com/file.nzb", "/downloads", "My Comic")
	require.NoError(t, err)
	assert.Equal(t, "SABnzbd_nzo_123", id)
}

func TestSABnzbdAddRejectsNonURL(t *testing.T) {
	client := NewSABnzbd(httpx.New("kapowarr-test"), "http://localhost", "key")
	_, err := client.Add(context.Background(), "not-a-url.nzb", "/downloads", "")
	assert.Error(t, err)
}

func TestSABnzbdGetStatusFromQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("mode") {
		case "queue":
			w.Write([]byte(`{"queue": {"slots": [{"nzo_id": "id1", "status": "Downloading", "mbleft": "50", "mb": "100", "speed": "1024"}]}}`))
		default:
			w.Write([]byte(`{"history": {"slots": []}}`))
		}
	}))
	defer srv.Close()

	client := NewSABnzbd(httpx.New("kapowarr-test"), srv.URL, "apikey123")
	status, err := client.GetStatus(context.Background(), "id1")
	require.NoError(t, err)
	assert.Equal(t, StateDownloading, status.State)
	assert.InDelta(t, 0.5, status.Progress, 0.001)
}

func TestSABnzbdGetStatusFromHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("mode") {
		case "queue":
			w.Write([]byte(`{"queue": {"slots": []}}`))
		default:
			w.Write([]byte(`{"history": {"slots": [{"nzo_id": "id2", "status": "Completed", "bytes": 2048}]}}`))
		}
	}))
	defer srv.Close()

	client := NewSABnzbd(httpx.New("kapowarr-test"), srv.URL, "apikey123")
	status, err := client.GetStatus(context.Background(), "id2")
	require.NoError(t, err)
	assert.Equal(t, StateComplete, status.State)
	assert.Equal(t, int64(2048), status.Size)
}

func TestSABnzbdRemove(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "delete", r.URL.Query().Get("name"))
		w.Write([]byte(`{"status": true}`))
	}))
	defer srv.Close()

	client := NewSABnzbd(httpx.New("kapowarr-test"), srv.URL, "apikey123")
	err := client.Remove(context.Background(), "id1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
