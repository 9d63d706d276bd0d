// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloadclient

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/httpx"
)

// directChunkSize is the fixed read size every direct-HTTP transfer streams
// in; speed is computed over the bytes of the single most recent chunk.
const directChunkSize = 4 * 1024 * 1024

// Direct streams a plain HTTP(S) URL straight to a file under a target
// folder. MediaFire, WeTransfer and PixelDrain single-file links all reduce
// to this after resolution.
type Direct struct {
	client *httpx.Client
	source domain.SourceKind

	link         string
	targetFolder string
	naming       NamingFunc
	headers      map[string]string

	stopped atomic.Bool
}

// NewDirect returns a Direct downloader for link, saving into targetFolder.
// source is carried only to special-case PixelDrain's quota-exceeded
// signaling. cred, when non-nil, is sent as HTTP Basic auth (PixelDrain
// accepts an API key this way).
func NewDirect(client *httpx.Client, source domain.SourceKind, link, targetFolder string, naming NamingFunc, cred *Credential) *Direct {
	d := &Direct{client: client, source: source, link: link, targetFolder: targetFolder, naming: naming}
	if cred != nil {
		d.headers = map[string]string{
			"Authorization": basicAuthHeader(cred.Email, cred.Password),
		}
	}
	return d
}

func (d *Direct) Stop() { d.stopped.Store(true) }

// Run GETs the link and streams the body to disk in fixed 4 MiB chunks,
// reporting Progress after each one. A PixelDrain 403 means the daily
// transfer quota on that file has been hit, not that the link is dead, so
// it's surfaced as DownloadLimitReached rather than a broken link.
func (d *Direct) Run(ctx context.Context, onProgress ProgressFunc) ([]string, error) {
	resp, err := d.client.Get(ctx, d.link, d.headers)
	if err != nil {
		return nil, errors.Wrap(err, "direct download request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden && isPixelDrainHost(d.source, d.link) {
		return nil, &domain.DownloadLimitReachedError{Source: d.source}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("direct download: unexpected status %d", resp.StatusCode)
	}

	name := d.resolveFilename(resp)
	path := filepath.Join(d.targetFolder, name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create download subfolder")
	}
	out, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create download file")
	}
	defer out.Close()

	size := resp.ContentLength
	var downloaded int64
	buf := make([]byte, directChunkSize)

	for {
		if d.stopped.Load() {
			return nil, errors.New("download stopped")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := time.Now()
		n, readErr := io.ReadFull(resp.Body, buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return nil, errors.Wrap(werr, "write download chunk")
			}
			downloaded += int64(n)
			elapsed := time.Since(start).Seconds()
			speed := int64(0)
			if elapsed > 0 {
				speed = int64(float64(n) / elapsed)
			}
			if onProgress != nil {
				onProgress(Progress{Size: size, Downloaded: downloaded, Speed: speed})
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, errors.Wrap(readErr, "read download chunk")
		}
	}

	return []string{path}, nil
}

// resolveFilename picks the on-disk name in priority order: the naming
// engine's render (when the matched issue/volume is known), then the
// response's Content-Disposition header, then the URL path. Extension
// sniffing follows the same order independently of where the body of the
// name came from.
func (d *Direct) resolveFilename(resp *http.Response) string {
	ext := sniffExtension(resp)

	if d.naming != nil {
		if body, ok := d.naming(); ok && body != "" {
			return body + ext
		}
	}

	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if star, ok := params["filename*"]; ok {
				if name := decodeExtendedFilename(star); name != "" {
					return name
				}
			}
			if name, ok := params["filename"]; ok && name != "" {
				return name
			}
		}
	}

	base := filepath.Base(resp.Request.URL.Path)
	if base == "" || base == "." || base == "/" {
		return "download" + ext
	}
	if filepath.Ext(base) == "" {
		base += ext
	}
	return base
}

func sniffExtension(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok {
				if ext := filepath.Ext(name); ext != "" {
					return ext
				}
			}
		}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}
	return filepath.Ext(resp.Request.URL.Path)
}

// decodeExtendedFilename decodes an RFC 5987 `filename*=UTF-8''...` value.
func decodeExtendedFilename(value string) string {
	const prefix = "UTF-8''"
	if !strings.HasPrefix(strings.ToUpper(value), strings.ToUpper(prefix)) {
		return ""
	}
	decoded, err := url.QueryUnescape(value[len(prefix):])
	if err != nil {
		return ""
	}
	return decoded
}

// basicAuthHeader renders an HTTP Basic Authorization header value without
// requiring a live *http.Request (this package builds headers for httpx's
// map-based Get/PostJSON, not http.Request.SetBasicAuth).
func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func isPixelDrainHost(source domain.SourceKind, link string) bool {
	if source != domain.SourcePixelDrain && source != domain.SourcePixelDrainFolder {
		return false
	}
	return strings.Contains(link, "pixeldrain.com")
}

var _ Downloader = (*Direct)(nil)
