// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package queue

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/downloadclient"
	"github.com/kapowarr/kapowarr/internal/naming"
	"github.com/kapowarr/kapowarr/internal/store"
)

// buildNamingFunc renders the filename body a download's chosen file
// template produces for its matched volume/issue, the renamed-at-download
// path the download clients prefer over anything extracted from a
// Content-Disposition header or the URL. It returns nil when renaming is
// disabled; the returned func reports false when the volume can no longer
// be resolved, and in both cases the download client falls back to its own
// remote-name/URL resolution. An issue that can no longer be resolved is
// left out of the rendered name rather than causing a fallback.
func (q *Queue) buildNamingFunc(d *store.Download) downloadclient.NamingFunc {
	settings := q.settings()
	if !settings.RenameDownloadedFiles {
		return nil
	}

	return func() (string, bool) {
		ctx := context.Background()

		volume, err := q.store.GetVolume(ctx, d.VolumeID)
		if err != nil || volume == nil {
			log.Debug().Int64("volumeID", d.VolumeID).Msg("[QUEUE] naming: volume lookup failed, falling back")
			return "", false
		}

		nctx := naming.Context{
			SeriesName:     volume.Title,
			VolumeNumber:   volume.VolumeNumber,
			ComicvineID:    volume.CatalogueID,
			Year:           volume.Year,
			Publisher:      volume.Publisher,
			SpecialVersion: volume.SpecialVersion,
		}

		if d.IssueID.Valid {
			issue, err := q.store.GetIssue(ctx, d.IssueID.Int64)
			if err == nil && issue != nil {
				nctx.IssueComicvineID = issue.CatalogueID
				nctx.IssueNumber = domain.Single(issue.CalculatedIssueNumber)
				nctx.IssueTitle = issue.Title
				nctx.IssueReleaseDate = issue.ReleaseDate
			}
		} else if covered := d.CoveredIssues(); covered.IsSet() {
			nctx.IssueNumber = covered
		}

		pad := naming.Padding{
			VolumeWidth:        settings.VolumePadding,
			IssueWidth:         settings.IssuePadding,
			LongSpecialVersion: settings.LongSpecialVersion,
		}
		templates := naming.Templates{
			VolumeFolder:       naming.Template{Pattern: settings.VolumeFolderNaming},
			File:               naming.Template{Pattern: settings.FileNaming},
			FileEmpty:          naming.Template{Pattern: settings.FileNamingEmpty},
			FileSpecialVersion: naming.Template{Pattern: settings.FileNamingSpecialVersion},
			FileVAI:            naming.Template{Pattern: settings.FileNamingVAI},
		}
		tmpl := templates.SelectFileTemplate(volume.SpecialVersion, nctx.IssueNumber.IsSet())
		return naming.Render(tmpl, nctx, pad), true
	}
}
