// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runSearchCommand groups the one-shot search entry points an external
// scheduler (cron, systemd timer) calls; the periodic trigger itself is
// not this program's job, only the sweep it invokes.
func runSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a search sweep without starting the server",
	}
	cmd.AddCommand(runSearchAutoAllCommand())
	return cmd
}

func runSearchAutoAllCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "auto-all",
		Short: "Auto-search every monitored volume and enqueue the best matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return searchAutoAll(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the config.toml file")
	return cmd
}

// searchAutoAll enqueues matches without starting the queue's workers: the
// rows it writes sit QUEUED until the running (or next) serve process picks
// them up via its restart-safety rebuild, the same path a crash recovery
// takes. Torrent/usenet downloads are handed to their external client
// immediately inside Enqueue itself, so those start right away regardless.
func searchAutoAll(ctx context.Context, configPath string) error {
	c, err := buildComposition(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.store.Close()

	if err := c.auto.AutoSearchAllMonitored(ctx); err != nil {
		log.Error().Err(err).Msg("[SEARCH] auto-search sweep failed")
		return err
	}

	log.Info().Msg("[SEARCH] auto-search sweep complete")
	return nil
}
