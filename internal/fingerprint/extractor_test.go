// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapowarr/kapowarr/internal/domain"
)

func TestExtractIssueRange(t *testing.T) {
	fp := Extract("/Batman/Volume 1 (1940)/Batman (1940) Volume 2 Issue 11-25.zip", Options{})

	assert.Equal(t, "Batman", fp.Series)
	require.True(t, fp.HasYear)
	assert.Equal(t, 1940, fp.Year)
	require.True(t, fp.VolumeNumber.IsSet())
	assert.Equal(t, 2, fp.VolumeNumber.Value())
	require.True(t, fp.IssueNumber.IsSet())
	start, end := fp.IssueNumber.Bounds()
	assert.Equal(t, 11.0, start)
	assert.Equal(t, 25.0, end)
	assert.False(t, fp.Annual)
}

func TestExtractAnnualTPB(t *testing.T) {
	fp := Extract("Avengers (1996) Volume 2 Annuals.zip", Options{})

	assert.Equal(t, "Avengers", fp.Series)
	assert.Equal(t, 1996, fp.Year)
	assert.Equal(t, 2, fp.VolumeNumber.Value())
	assert.Equal(t, domain.SpecialVersionTPB, fp.SpecialVersion)
	assert.True(t, fp.Annual)
	assert.False(t, fp.IssueNumber.IsSet())
}

func TestExtractSingleIssue(t *testing.T) {
	fp := Extract("Daredevil (2016) #005.cbz", Options{})

	assert.Equal(t, "Daredevil", fp.Series)
	assert.Equal(t, 2016, fp.Year)
	require.True(t, fp.IssueNumber.IsSet())
	assert.Equal(t, 5.0, fp.IssueNumber.Value())
}

func TestExtractOneShot(t *testing.T) {
	fp := Extract("Superman Red Son One-Shot (2003).cbz", Options{})

	assert.Equal(t, domain.SpecialVersionOneShot, fp.SpecialVersion)
	assert.Equal(t, 2003, fp.Year)
}

func TestExtractHardCover(t *testing.T) {
	fp := Extract("Saga HC Volume 1 (2013).cbz", Options{})

	assert.Equal(t, domain.SpecialVersionHardCover, fp.SpecialVersion)
	assert.Equal(t, 1, fp.VolumeNumber.Value())
}

func TestExtractCoverImage(t *testing.T) {
	fp := Extract("Batman (1940)/cover.jpg", Options{})

	assert.Equal(t, domain.SpecialVersionCover, fp.SpecialVersion)
}

func TestExtractMetadataFile(t *testing.T) {
	fp := Extract("/Batman (1940)/ComicInfo.xml", Options{})

	assert.Equal(t, domain.SpecialVersionMetadata, fp.SpecialVersion)
	assert.Equal(t, "Batman", fp.Series)
}

func TestExtractAssumeVolumeNumber(t *testing.T) {
	without := Extract("Batman (1940).cbz", Options{})
	assert.False(t, without.VolumeNumber.IsSet())

	with := Extract("Batman (1940).cbz", Options{AssumeVolumeNumber: true})
	require.True(t, with.VolumeNumber.IsSet())
	assert.Equal(t, 1, with.VolumeNumber.Value())
}

func TestExtractRomanNumeralVolume(t *testing.T) {
	fp := Extract("Hellboy Vol. III #4.cbz", Options{})
	require.True(t, fp.VolumeNumber.IsSet())
	assert.Equal(t, 3, fp.VolumeNumber.Value())
}

func TestFixYear(t *testing.T) {
	assert.Equal(t, 2024, fixYear(2204))
	assert.Equal(t, 1980, fixYear(1890))
	assert.Equal(t, 1889, fixYear(1889))
	assert.Equal(t, 1996, fixYear(1996))
}

func TestCalcFloatIssueNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"1½", 1.5},
		{"½", 0.5},
		{"1a", 1.01},
		{"5b", 5.02},
		{"12", 12},
		{"-1", -1},
	}
	for _, tt := range tests {
		got, ok := calcFloatIssueNumber(tt.raw)
		require.True(t, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestProcessVolumeNumberRoman(t *testing.T) {
	n := processVolumeNumber("iii")
	require.True(t, n.IsSet())
	assert.Equal(t, 3, n.Value())
}

func TestProcessVolumeNumberRange(t *testing.T) {
	n := processVolumeNumber("2-4")
	require.True(t, n.IsRange())
	start, end := n.Bounds()
	assert.Equal(t, 2, start)
	assert.Equal(t, 4, end)
}
