// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kapowarr/kapowarr/internal/aggregator"
	"github.com/kapowarr/kapowarr/internal/api"
	"github.com/kapowarr/kapowarr/internal/config"
	"github.com/kapowarr/kapowarr/internal/convert"
	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/externalclient"
	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/internal/metrics"
	"github.com/kapowarr/kapowarr/internal/postprocess"
	"github.com/kapowarr/kapowarr/internal/queue"
	"github.com/kapowarr/kapowarr/internal/search"
	"github.com/kapowarr/kapowarr/internal/store"
)

// composition is the full dependency graph shared by the serve command and
// the one-shot search subcommands: everything downstream of config+store.
type composition struct {
	cfg    *config.Config
	store  *store.Store
	queue  *queue.Queue
	engine *search.Engine
	auto   *search.AutoEngine
	reg    *prometheus.Registry
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "kapowarr", "config.toml")
}

// buildComposition loads config and wires every collaborator. Callers are
// responsible for closing the returned store and, if they started the
// queue's workers, stopping it.
func buildComposition(ctx context.Context, configPath string) (*composition, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)

	st, err := store.Open(cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	settings := func() domain.Settings { return cfg.Settings }

	httpClient := httpx.New(cfg.UserAgent)
	agg := aggregator.New(httpClient, cfg.AggregatorBaseURL)

	externalClients := buildExternalClients(ctx, cfg)

	pp := postprocess.New(st, settings, convert.DefaultRegistry())
	q := queue.New(st, httpClient, settings, externalClients, pp)

	engine := search.New(agg, st, settings)
	auto := search.NewAuto(engine, q, httpClient, queue.NewStoreCredentialSource(st), func() bool {
		_, ok := externalClients[domain.DownloadTypeTorrent]
		return ok
	})

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	return &composition{cfg: cfg, store: st, queue: q, engine: engine, auto: auto, reg: reg}, nil
}

func runServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Kapowarr server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the config.toml file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	c, err := buildComposition(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.store.Close()

	apiServer := api.NewServer(&api.Dependencies{Store: c.store, Queue: c.queue, StartedAt: time.Now(), Registry: c.reg})

	if err := c.queue.Start(ctx); err != nil {
		return err
	}
	defer c.queue.Stop()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", c.cfg.Addr()).Msg("[SERVE] starting Kapowarr")
	return api.ListenAndServe(runCtx, c.cfg.Addr(), apiServer.Handler())
}

// buildExternalClients logs into whichever of qBittorrent/SABnzbd has
// credentials configured; an unconfigured backend is simply absent from
// the map, which the queue treats as "that transport isn't available".
func buildExternalClients(ctx context.Context, cfg *config.Config) map[domain.DownloadType]externalclient.Client {
	clients := map[domain.DownloadType]externalclient.Client{}

	if cfg.QBittorrentHost != "" {
		qb, err := externalclient.NewQBittorrent(ctx, cfg.QBittorrentHost, cfg.QBittorrentUsername, cfg.QBittorrentPassword)
		if err != nil {
			log.Error().Err(err).Msg("[SERVE] failed to connect to qBittorrent, torrent downloads disabled")
		} else {
			clients[domain.DownloadTypeTorrent] = qb
		}
	}

	if cfg.SABnzbdHost != "" {
		clients[domain.DownloadTypeUsenet] = externalclient.NewSABnzbd(httpx.New(cfg.UserAgent), cfg.SABnzbdHost, cfg.SABnzbdAPIKey)
	}

	return clients
}
