// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/domain"
)

func TestRenderVolumeFolder(t *testing.T) {
	tmpl := DefaultTemplates().VolumeFolder
	pad := Padding{VolumeWidth: 2, IssueWidth: 3}
	ctx := Context{SeriesName: "Batman", VolumeNumber: 2, Year: 1940}

	got := Render(tmpl, ctx, pad)
	assert.Equal(t, "Batman/Volume 02 (1940)", got)
}

func TestRenderFileWithIssueRange(t *testing.T) {
	tmpl := DefaultTemplates().File
	pad := Padding{VolumeWidth: 2, IssueWidth: 3}
	ctx := Context{SeriesName: "Batman", VolumeNumber: 2, Year: 1940, IssueNumber: domain.Span(11, 25)}

	got := Render(tmpl, ctx, pad)
	assert.Equal(t, "Batman 02 (1940)/Batman 011-025 (1940)", got)
}

func TestRenderSanitizesIllegalCharacters(t *testing.T) {
	tmpl := Template{Pattern: "{series_name}"}
	pad := Padding{VolumeWidth: 2, IssueWidth: 3}
	ctx := Context{SeriesName: `Batman: The <Dark> Knight?`}

	got := Render(tmpl, ctx, pad)
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, ">")
	assert.NotContains(t, got, ":")
	assert.NotContains(t, got, "?")
}

func TestSelectFileTemplate(t *testing.T) {
	templates := DefaultTemplates()
	assert.Equal(t, templates.FileSpecialVersion, templates.SelectFileTemplate(domain.SpecialVersionTPB, true))
	assert.Equal(t, templates.FileVAI, templates.SelectFileTemplate(domain.SpecialVersionVolumeAsIssue, true))
	assert.Equal(t, templates.File, templates.SelectFileTemplate(domain.SpecialVersionNormal, true))
}

func TestSelectFileTemplateFallsBackToEmptyWhenIssueUnresolved(t *testing.T) {
	templates := DefaultTemplates()
	assert.Equal(t, templates.FileEmpty, templates.SelectFileTemplate(domain.SpecialVersionNormal, false))
	assert.Equal(t, templates.FileEmpty, templates.SelectFileTemplate(domain.SpecialVersionTPB, false))
}

func TestValidateTemplateDetectsCollision(t *testing.T) {
	tmpl := Template{Pattern: "{series_name}"}
	pad := Padding{VolumeWidth: 2, IssueWidth: 3}
	mocks := []Context{
		{SeriesName: "Batman"},
		{SeriesName: "Batman!"},
	}
	err := ValidateTemplate(tmpl, mocks, pad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateCollision)
}

func TestValidateTemplateNoCollision(t *testing.T) {
	tmpl := DefaultTemplates().File
	pad := Padding{VolumeWidth: 2, IssueWidth: 3}
	mocks := []Context{
		{SeriesName: "Batman", VolumeNumber: 1, Year: 1940, IssueNumber: domain.Single(1)},
		{SeriesName: "Batman", VolumeNumber: 1, Year: 1940, IssueNumber: domain.Single(2)},
	}
	require.NoError(t, ValidateTemplate(tmpl, mocks, pad))
}
