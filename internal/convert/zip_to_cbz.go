// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// zipToCBZ converts a plain .zip into a .cbz. A CBZ is a zip archive by
// format; this converter just renames the file in place rather than
// re-archiving it.
type zipToCBZ struct{}

func (zipToCBZ) SourceExt() string    { return ".zip" }
func (zipToCBZ) TargetFormat() string { return "cbz" }

func (zipToCBZ) Convert(_ context.Context, path string) (string, error) {
	ext := filepath.Ext(path)
	target := strings.TrimSuffix(path, ext) + ".cbz"
	if err := os.Rename(path, target); err != nil {
		return "", errors.Wrapf(err, "rename %s to cbz", path)
	}
	return target, nil
}

var _ Converter = zipToCBZ{}
