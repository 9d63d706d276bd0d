// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kapowarr/kapowarr/internal/config"
)

// setupLogging points the global zerolog logger at a pretty console
// writer, or a rotating file via lumberjack when a log path is configured,
// and applies the configured level.
func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	if cfg.LogPath != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
		}
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}
