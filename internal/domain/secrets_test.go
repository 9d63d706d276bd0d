// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "non-empty string returns asterisks of same length", input: "secret-password", want: "***************"},
		{name: "empty string returns empty", input: "", want: ""},
		{name: "single character", input: "a", want: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RedactString(tt.input))
		})
	}
}

func TestIsRedactedValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "redacted placeholder returns true", input: RedactedStr, want: true},
		{name: "empty string returns false", input: "", want: false},
		{name: "regular string returns false", input: "some-secret", want: false},
		{name: "redacted with extra chars returns false", input: RedactedStr + "extra", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRedactedValue(tt.input))
		})
	}
}
