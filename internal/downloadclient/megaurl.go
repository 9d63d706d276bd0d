// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import "regexp"

var (
	megaFileRegexV1   = regexp.MustCompile(`mega(?:\.co)?\.nz/#!([0-9a-zA-Z_-]+)!([0-9a-zA-Z_-]+)`)
	megaFileRegexV2   = regexp.MustCompile(`mega(?:\.co)?\.nz/file/([0-9a-zA-Z_-]+)#([0-9a-zA-Z_-]+)`)
	megaFolderRegexV1 = regexp.MustCompile(`mega(?:\.co)?\.nz/#F!([0-9a-zA-Z_-]+)!([0-9a-zA-Z_-]+)`)
	megaFolderRegexV2 = regexp.MustCompile(`mega(?:\.co)?\.nz/folder/([0-9a-zA-Z_-]+)#([0-9a-zA-Z_-]+)(?:/file/([0-9a-zA-Z_-]+))?`)
)

// parseMegaFileURL recognizes both the legacy `#!id!key` form and the
// current `/file/id#key` form of a single-file Mega link.
func parseMegaFileURL(link string) (id, key string, ok bool) {
	if m := megaFileRegexV2.FindStringSubmatch(link); m != nil {
		return m[1], m[2], true
	}
	if m := megaFileRegexV1.FindStringSubmatch(link); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

// parseMegaFolderURL recognizes both the legacy `#F!id!key` form and the
// current `/folder/id#key[/file/fileID]` form. fileID is non-empty only
// when the link points at one specific file inside the folder.
func parseMegaFolderURL(link string) (id, key, fileID string, ok bool) {
	if m := megaFolderRegexV2.FindStringSubmatch(link); m != nil {
		return m[1], m[2], m[3], true
	}
	if m := megaFolderRegexV1.FindStringSubmatch(link); m != nil {
		return m[1], m[2], "", true
	}
	return "", "", "", false
}
