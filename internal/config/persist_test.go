// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/kapowarr/kapowarr/internal/domain"
	"github.com/kapowarr/kapowarr/internal/naming"
)

func TestUpdateLogSettingsInTOMLUpdatesCommentedKeysInPlace(t *testing.T) {
	content := `# config.toml - Auto-generated on first run

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/qui.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# HTTP Timeouts
[httpTimeouts]
#readTimeout = 60
`
	updated := updateLogSettingsInTOML(content, "DEBUG", "/config/qui.log", 50, 3)

	if strings.Contains(updated, "# Log settings") {
		t.Fatalf("unexpected appended log settings section:\n%s", updated)
	}

	httpIndex := strings.Index(updated, "[httpTimeouts]")
	if httpIndex == -1 {
		t.Fatalf("missing httpTimeouts section:\n%s", updated)
	}

	lastLogPath := strings.LastIndex(updated, "logPath")
	if lastLogPath == -1 {
		t.Fatalf("missing logPath setting:\n%s", updated)
	}
	if lastLogPath > httpIndex {
		t.Fatalf("logPath appended after httpTimeouts section:\n%s", updated)
	}

	if !strings.Contains(updated, `logPath = "/config/qui.log"`) {
		t.Fatalf("logPath not updated in place:\n%s", updated)
	}
	if !strings.Contains(updated, "logMaxSize = 50") {
		t.Fatalf("logMaxSize not updated in place:\n%s", updated)
	}
	if !strings.Contains(updated, "logMaxBackups = 3") {
		t.Fatalf("logMaxBackups not updated in place:\n%s", updated)
	}
	if !strings.Contains(updated, `logLevel = "DEBUG"`) {
		t.Fatalf("logLevel not updated in place:\n%s", updated)
	}
}

func TestUpdateNamingSettingsInTOMLUpdatesKeysInPlace(t *testing.T) {
	content := `# config.toml

volumeFolderNaming = "{series_name}"
fileNaming = "{series_name} {issue_number}"

[httpTimeouts]
#readTimeout = 60
`
	s := domain.DefaultSettings()
	s.VolumeFolderNaming = "{series_name}/Vol {volume_number}"
	s.FileNaming = "{series_name} {volume_number} {issue_number}"

	updated := updateNamingSettingsInTOML(content, s)

	httpIndex := strings.Index(updated, "[httpTimeouts]")
	if httpIndex == -1 {
		t.Fatalf("missing httpTimeouts section:\n%s", updated)
	}
	if lastVolumeFolder := strings.LastIndex(updated, "volumeFolderNaming"); lastVolumeFolder > httpIndex {
		t.Fatalf("volumeFolderNaming appended after httpTimeouts section:\n%s", updated)
	}

	if !strings.Contains(updated, `volumeFolderNaming = "{series_name}/Vol {volume_number}"`) {
		t.Fatalf("volumeFolderNaming not updated in place:\n%s", updated)
	}
	if !strings.Contains(updated, `fileNaming = "{series_name} {volume_number} {issue_number}"`) {
		t.Fatalf("fileNaming not updated in place:\n%s", updated)
	}
	if !strings.Contains(updated, `fileNamingEmpty = `) {
		t.Fatalf("fileNamingEmpty not inserted:\n%s", updated)
	}
	if !strings.Contains(updated, `volumePadding = 2`) {
		t.Fatalf("volumePadding not inserted:\n%s", updated)
	}
}

func TestUpdateNamingSettingsRejectsCollidingTemplate(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir + "/config.toml")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := c.Settings
	s.FileNaming = "{series_name}"

	err = c.UpdateNamingSettings(s)
	if err == nil {
		t.Fatal("expected a collision error, got nil")
	}
	if !errors.Is(err, naming.ErrTemplateCollision) {
		t.Fatalf("expected ErrTemplateCollision, got %v", err)
	}

	if c.Settings.FileNaming == "{series_name}" {
		t.Fatal("settings must not be mutated when validation rejects the update")
	}
}
