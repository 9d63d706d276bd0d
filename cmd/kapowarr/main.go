// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kapowarr/kapowarr/internal/httpx"
	"github.com/kapowarr/kapowarr/internal/update"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// updateRepository is the GitHub slug version --check looks up releases
// against. Overridden at build time alongside version via -ldflags.
var updateRepository = "kapowarr/kapowarr"

func main() {
	root := &cobra.Command{
		Use:   "kapowarr",
		Short: "Kapowarr is a comic-book library automation server",
	}

	root.AddCommand(runServeCommand())
	root.AddCommand(runVersionCommand())
	root.AddCommand(runDBCommand())
	root.AddCommand(runSearchCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(version)
			if !check {
				return nil
			}

			checker := update.New(httpx.New("kapowarr/"+version), updateRepository)
			available, latest, err := checker.IsUpdateAvailable(cmd.Context(), version)
			if err != nil {
				return err
			}
			if available {
				cmd.Printf("a newer version is available: %s\n", latest.String())
			} else {
				cmd.Println("up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
