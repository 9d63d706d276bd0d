// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package convert turns a downloaded comic file from one archive format
// into another, driven by the format_preference setting. Every converter
// targets a fixed destination format; the post-processor only invokes one
// when the source extension has a registered converter aimed at a format
// the user actually prefers.
package convert

import (
	"context"
	"strings"
)

// Converter turns one file into another format, returning the path to the
// converted result. The source file is left in place; callers decide
// whether to remove it.
type Converter interface {
	SourceExt() string
	TargetFormat() string
	Convert(ctx context.Context, path string) (string, error)
}

// Registry looks up a Converter by source extension and by the set of
// target formats it knows how to produce, the shape domain.Settings.Validate
// needs to check format_preference against.
type Registry struct {
	bySourceExt map[string][]Converter
}

// NewRegistry builds a Registry from a fixed converter list.
func NewRegistry(converters ...Converter) *Registry {
	r := &Registry{bySourceExt: make(map[string][]Converter)}
	for _, c := range converters {
		ext := strings.ToLower(c.SourceExt())
		r.bySourceExt[ext] = append(r.bySourceExt[ext], c)
	}
	return r
}

// DefaultRegistry is the converter set this service ships: every
// recognized archive format converts to CBZ, the one format the naming
// and scanning pipeline treats as canonical.
func DefaultRegistry() *Registry {
	return NewRegistry(
		zipToCBZ{},
		archiveToCBZ{ext: ".cbr"},
		archiveToCBZ{ext: ".rar"},
		archiveToCBZ{ext: ".cb7"},
		archiveToCBZ{ext: ".7z"},
		archiveToCBZ{ext: ".cbt"},
		archiveToCBZ{ext: ".tar.gz"},
	)
}

// Targets returns every distinct target format this registry can produce,
// the set domain.Settings.Validate checks format_preference entries
// against.
func (r *Registry) Targets() map[string]bool {
	out := make(map[string]bool)
	for _, cs := range r.bySourceExt {
		for _, c := range cs {
			out[c.TargetFormat()] = true
		}
	}
	return out
}

// Find returns the converter for path's extension whose target format
// appears in preference, preferring whichever preferred format comes
// first. It reports false when no converter applies, or none of its
// targets are in the preference list.
func (r *Registry) Find(path string, preference []string) (Converter, bool) {
	ext := sourceExt(path)
	candidates := r.bySourceExt[ext]
	if len(candidates) == 0 {
		return nil, false
	}
	for _, want := range preference {
		for _, c := range candidates {
			if c.TargetFormat() == want {
				return c, true
			}
		}
	}
	return nil, false
}

// sourceExt returns path's extension, handling the one compound extension
// (".tar.gz") the file-format list recognizes.
func sourceExt(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tar.gz"
	}
	if i := strings.LastIndexByte(lower, '.'); i >= 0 {
		return lower[i:]
	}
	return ""
}
