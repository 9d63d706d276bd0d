// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/kapowarr/kapowarr/internal/config"
)

func runDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}
	cmd.AddCommand(runDBPathCommand())
	return cmd
}

func runDBPathCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the resolved sqlite database path and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}
			cmd.Println(cfg.GetDatabasePath())
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the config.toml file")
	return cmd
}
