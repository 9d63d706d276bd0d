// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabasePathConfiguration(t *testing.T) {
	tests := []struct {
		name           string
		configContent  string
		envVar         string
		expectedInPath string
	}{
		{
			name: "default_next_to_config",
			configContent: `
host = "localhost"
port = 8080`,
			expectedInPath: "kapowarr.db",
		},
		{
			name: "explicit_in_config",
			configContent: `
host = "localhost"
port = 8080
databasePath = "/custom/path.db"`,
			expectedInPath: "/custom/path.db",
		},
		{
			name: "env_var_override",
			configContent: `
host = "localhost"
port = 8080
databasePath = "/config/path.db"`,
			envVar:         "/env/override.db",
			expectedInPath: "/env/override.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.toml")
			err := os.WriteFile(configPath, []byte(tt.configContent), 0644)
			require.NoError(t, err)

			if tt.envVar != "" {
				os.Setenv("KAPOWARR__DATABASE_PATH", tt.envVar)
				defer os.Unsetenv("KAPOWARR__DATABASE_PATH")
			}

			cfg, err := New(configPath)
			require.NoError(t, err)

			dbPath := cfg.GetDatabasePath()
			if filepath.IsAbs(tt.expectedInPath) {
				assert.Equal(t, tt.expectedInPath, dbPath)
			} else {
				assert.Contains(t, dbPath, tt.expectedInPath)
			}
		})
	}
}

func TestBackwardCompatibility(t *testing.T) {
	// Ensure existing configs work without databasePath set.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
host = "localhost"
port = 8080`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := New(configPath)
	require.NoError(t, err)

	dbPath := cfg.GetDatabasePath()
	expectedPath := filepath.Join(tmpDir, "kapowarr.db")
	assert.Equal(t, expectedPath, dbPath)
}

func TestEnvironmentVariablePrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
host = "localhost"
port = 8080
databasePath = "/config/file/path.db"`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	os.Setenv("KAPOWARR__DATABASE_PATH", "/env/var/path.db")
	defer os.Unsetenv("KAPOWARR__DATABASE_PATH")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/env/var/path.db", cfg.GetDatabasePath())
}

func TestDefaultSettingsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("host = \"localhost\"\nport = 8080\n"), 0644))

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Settings.VolumePadding)
	assert.Equal(t, 3, cfg.Settings.IssuePadding)
	assert.True(t, cfg.Settings.RenameDownloadedFiles)
	assert.Len(t, cfg.Settings.ServicePreference, 10)
}
