// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api is the ambient HTTP surface: a health check, a small
// at-a-glance status endpoint, and the prometheus scrape endpoint. The
// control API proper (volumes, issues, downloads) is out of scope; this
// package exists so the server has a real listener to run.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kapowarr/kapowarr/internal/queue"
	"github.com/kapowarr/kapowarr/internal/store"
)

// Dependencies holds everything the minimal HTTP surface reports on.
type Dependencies struct {
	Store     *store.Store
	Queue     *queue.Queue
	StartedAt time.Time

	// Registry is scraped at /metrics. A nil Registry falls back to the
	// global default registerer/gatherer.
	Registry *prometheus.Registry
}

// Server wraps the chi router built from Dependencies.
type Server struct {
	deps *Dependencies
}

// NewServer builds a Server over deps.
func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the router: request ID/recoverer middleware, permissive
// CORS (this surface carries no credentials to protect), health, status,
// and metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Handle("/metrics", s.metricsHandler())

	return r
}

func (s *Server) metricsHandler() http.Handler {
	if s.deps.Registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	MonitoredVolumes int    `json:"monitoredVolumes"`
	QueueDepth       int    `json:"queueDepth"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := statusResponse{Status: "ok", UptimeSeconds: int64(time.Since(s.deps.StartedAt).Seconds())}

	if s.deps.Store != nil {
		if volumes, err := s.deps.Store.ListMonitoredVolumes(ctx); err == nil {
			resp.MonitoredVolumes = len(volumes)
		}
	}
	if s.deps.Queue != nil {
		if items, err := s.deps.Queue.List(ctx); err == nil {
			resp.QueueDepth = len(items)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the HTTP server until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
