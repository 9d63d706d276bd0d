// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/store"
)

func TestHandleHealth(t *testing.T) {
	s := NewServer(&Dependencies{StartedAt: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestHandleStatusReportsMonitoredVolumeCount(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	rfID, err := st.CreateRootFolder(ctx, t.TempDir())
	require.NoError(t, err)
	_, err = st.CreateVolume(ctx, &store.Volume{
		CatalogueID: "cv:1", Title: "Saga", Folder: t.TempDir(), RootFolderID: rfID, Monitored: true,
	})
	require.NoError(t, err)

	s := NewServer(&Dependencies{Store: st, StartedAt: time.Now().Add(-5 * time.Second)})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.MonitoredVolumes)
	require.GreaterOrEqual(t, body.UptimeSeconds, int64(5))
}

func TestHandleMetricsServesPrometheusFormat(t *testing.T) {
	s := NewServer(&Dependencies{StartedAt: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
