// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads and persists the server's on-disk configuration:
// host/port, logging, and the domain.Settings surface the core consumes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kapowarr/kapowarr/internal/domain"
)

const envPrefix = "KAPOWARR"

// Config is the loaded, mutable configuration surface: server identity,
// logging, and the domain settings the rest of the application reads.
type Config struct {
	Host string `toml:"host" mapstructure:"host"`
	Port int    `toml:"port" mapstructure:"port"`

	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`

	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	AggregatorBaseURL string `toml:"aggregatorBaseUrl" mapstructure:"aggregatorBaseUrl"`
	UserAgent         string `toml:"userAgent" mapstructure:"userAgent"`

	QBittorrentHost     string `toml:"qbittorrentHost" mapstructure:"qbittorrentHost"`
	QBittorrentUsername string `toml:"qbittorrentUsername" mapstructure:"qbittorrentUsername"`
	QBittorrentPassword string `toml:"qbittorrentPassword" mapstructure:"qbittorrentPassword"`

	SABnzbdHost   string `toml:"sabnzbdHost" mapstructure:"sabnzbdHost"`
	SABnzbdAPIKey string `toml:"sabnzbdApiKey" mapstructure:"sabnzbdApiKey"`

	Settings domain.Settings `mapstructure:",squash"`

	v          *viper.Viper
	configPath string
}

// New loads configuration from configPath, creating it with documented
// defaults if it doesn't exist yet, and applies KAPOWARR_-prefixed
// environment variable overrides (double underscore separates nesting,
// matching the teacher's convention: KAPOWARR__DATABASE_PATH).
func New(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	setDefaults(v)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return nil, errors.Wrap(err, "create config directory")
		}
		if err := v.WriteConfigAs(configPath); err != nil {
			return nil, errors.Wrap(err, "write default config")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := &Config{v: v, configPath: configPath}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	// AutomaticEnv looks databasePath up as KAPOWARR_DATABASEPATH, so the
	// double-underscore form is read here.
	if p := os.Getenv(envPrefix + "__DATABASE_PATH"); p != "" {
		cfg.DatabasePath = p
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5656)
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)

	v.SetDefault("aggregatorBaseUrl", "https://getcomics.org")
	v.SetDefault("userAgent", "Kapowarr/1.0")

	defaults := domain.DefaultSettings()
	v.SetDefault("downloadFolder", defaults.DownloadFolder)
	v.SetDefault("servicePreference", defaults.ServicePreference)
	v.SetDefault("formatPreference", defaults.FormatPreference)
	v.SetDefault("renameDownloadedFiles", defaults.RenameDownloadedFiles)
	v.SetDefault("volumeFolderNaming", defaults.VolumeFolderNaming)
	v.SetDefault("fileNaming", defaults.FileNaming)
	v.SetDefault("fileNamingEmpty", defaults.FileNamingEmpty)
	v.SetDefault("fileNamingSpecialVersion", defaults.FileNamingSpecialVersion)
	v.SetDefault("fileNamingVai", defaults.FileNamingVAI)
	v.SetDefault("volumePadding", defaults.VolumePadding)
	v.SetDefault("issuePadding", defaults.IssuePadding)
	v.SetDefault("longSpecialVersion", defaults.LongSpecialVersion)
	v.SetDefault("convert", defaults.Convert)
	v.SetDefault("extractIssueRanges", defaults.ExtractIssueRanges)
	v.SetDefault("seedingHandling", string(defaults.SeedingHandling))
	v.SetDefault("deleteCompletedTorrents", defaults.DeleteCompletedTorrents)
}

// GetDatabasePath resolves the sqlite path: explicit databasePath setting
// if given, else "kapowarr.db" next to the config file.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(filepath.Dir(c.configPath), "kapowarr.db")
}

// Addr renders the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
