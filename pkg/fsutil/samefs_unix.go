// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !windows

package fsutil

import (
	"fmt"
	"os"
	"syscall"
)

func sameFilesystem(path1, path2 string) (bool, error) {
	info1, err := os.Stat(path1)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path1, err)
	}
	info2, err := os.Stat(path2)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path2, err)
	}

	stat1, ok := info1.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unsupported stat_t for %s", path1)
	}
	stat2, ok := info2.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unsupported stat_t for %s", path2)
	}

	return stat1.Dev == stat2.Dev, nil
}
