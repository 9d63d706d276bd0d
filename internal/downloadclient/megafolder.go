// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
)

// megaNodeTypeFile and megaNodeTypeFolder are Mega's own node-type codes
// ('t' field) for a folder listing's entries.
const (
	megaNodeTypeFile   = 0
	megaNodeTypeFolder = 1
)

type megaNode struct {
	Handle string `json:"h"`
	Type   int    `json:"t"`
	Attr   string `json:"a"`
	Size   int64  `json:"s"`
	Key    string `json:"k"`
}

// MegaFolder downloads every file in a public Mega folder (or, when the
// link names one specific file inside it, just that file), reusing the
// same AES-CTR-plus-CBC-MAC transfer logic as Mega.
type MegaFolder struct {
	httpClient *httpx.Client
	api        *megaAPIClient

	link         string
	targetFolder string
	cred         *Credential
	naming       NamingFunc

	stopped atomic.Bool
}

func NewMegaFolder(client *httpx.Client, link, targetFolder string, cred *Credential, naming NamingFunc) *MegaFolder {
	return &MegaFolder{
		httpClient:   client,
		api:          newMegaAPIClient(client),
		link:         link,
		targetFolder: targetFolder,
		cred:         cred,
		naming:       naming,
	}
}

func (m *MegaFolder) Stop() { m.stopped.Store(true) }

func (m *MegaFolder) Run(ctx context.Context, onProgress ProgressFunc) ([]string, error) {
	folderID, keyStr, onlyFileID, ok := parseMegaFolderURL(m.link)
	if !ok {
		return nil, &domain.LinkBrokenError{Reason: domain.LinkBrokenReasonBroken, Detail: "not a mega folder link"}
	}
	folderKey, err := base64ToA32(keyStr)
	if err != nil || len(folderKey) < 4 {
		return nil, &domain.LinkBrokenError{Reason: domain.LinkBrokenReasonBroken, Detail: "malformed mega folder key"}
	}
	folderKey = folderKey[:4]

	sid, _, err := loginCached(ctx, m.api, m.cred)
	if err != nil {
		return nil, &domain.ClientNotWorkingError{Desc: err.Error()}
	}

	res, err := m.api.callWithNode(ctx, sid, folderID, map[string]any{"a": "f", "c": 1, "r": 1, "ca": 1, "ssl": 1})
	if err != nil {
		return nil, err
	}
	var listing struct {
		Files []megaNode `json:"f"`
	}
	if err := json.Unmarshal(res, &listing); err != nil {
		return nil, errors.Wrap(err, "mega folder listing")
	}

	var files []megaNode
	for _, n := range listing.Files {
		if n.Type != megaNodeTypeFile {
			continue
		}
		if onlyFileID != "" && n.Handle != onlyFileID {
			continue
		}
		files = append(files, n)
	}
	if len(files) == 0 {
		return nil, errors.New("mega folder has no downloadable files")
	}

	var totalSize int64
	for _, n := range files {
		totalSize += n.Size
	}

	var downloadedSoFar int64
	var paths []string
	for _, n := range files {
		fileKey, err := folderFileKey(n.Key, folderKey)
		if err != nil {
			return nil, errors.Wrap(err, "mega folder file key")
		}

		nodeRes, err := m.api.callWithNode(ctx, sid, folderID, map[string]any{"a": "g", "g": 1, "n": n.Handle, "ssl": 1})
		if err != nil {
			return nil, err
		}
		var data struct {
			G  string `json:"g"`
			TL int    `json:"tl"`
		}
		if err := json.Unmarshal(nodeRes, &data); err != nil {
			return nil, errors.Wrap(err, "mega folder file metadata")
		}
		if data.TL != 0 {
			return nil, &domain.DownloadLimitReachedError{Source: domain.SourceMegaFolder}
		}

		k, _, _ := cipherKeyParts(fileKey)
		remoteName, _ := decryptAttr(k, n.Attr)
		filename := resolveMegaFilename(m.naming, remoteName, "mega-folder-file")
		path := filepath.Join(m.targetFolder, filename)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create download subfolder")
		}
		out, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrap(err, "create mega folder download file")
		}

		base := downloadedSoFar
		wrapped := func(p Progress) {
			if onProgress != nil {
				onProgress(Progress{Size: totalSize, Downloaded: base + p.Downloaded, Speed: p.Speed})
			}
		}
		err = downloadAndDecrypt(ctx, m.httpClient, data.G, n.Size, fileKey, &m.stopped, out, wrapped)
		out.Close()
		if err != nil {
			return nil, err
		}

		downloadedSoFar += n.Size
		paths = append(paths, path)
	}

	return paths, nil
}

// folderFileKey decrypts one folder entry's own file key. Mega stores it as
// "<ownerHandle>:<base64 encrypted key>", sometimes with several
// colon-separated owner:key pairs for shared folders; only the first pair
// is ever relevant here since these are always public, single-owner links.
func folderFileKey(raw string, folderKey []uint32) ([]uint32, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return nil, errors.New("malformed mega node key")
	}
	encrypted, err := base64ToA32(parts[1])
	if err != nil {
		return nil, err
	}
	return decryptKeyA32(encrypted, folderKey)
}

var _ Downloader = (*MegaFolder)(nil)
