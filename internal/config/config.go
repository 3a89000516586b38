// Package config loads and validates committrail configuration from file,
// environment, and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the environment variable prefix (COMMITTRAIL_TRACKING_REPO_PATH etc).
	EnvPrefix = "COMMITTRAIL"

	// DefaultConfigName is the config file base name (committrail.yaml).
	DefaultConfigName = "committrail"

	// DefaultTrackingLogFile is the tracking log file name inside the
	// tracking repository.
	DefaultTrackingLogFile = "commit-tracker.log"
)

// Config holds all configuration options.
type Config struct {
	// TrackingRepoPath is the tracking repository root. Required.
	TrackingRepoPath string `mapstructure:"tracking_repo_path"`

	// TrackingLogFile is the log file path relative to the tracking root.
	TrackingLogFile string `mapstructure:"tracking_log_file"`

	// Repositories are the local repositories to watch.
	Repositories []string `mapstructure:"repositories"`

	// ExcludedBranches are never mirrored into the tracking log.
	ExcludedBranches []string `mapstructure:"excluded_branches"`

	// EnableFileLogging writes daemon logs to LogFilePath with rotation.
	EnableFileLogging bool `mapstructure:"enable_file_logging"`

	// LogFilePath is the daemon log file. Defaults to committrail.log in
	// the tracking root.
	LogFilePath string `mapstructure:"log_file_path"`

	// UpdateFrequencyMinutes is how often pending unpushed tracking
	// commits are re-attempted. Must be within [1, 60].
	UpdateFrequencyMinutes int `mapstructure:"update_frequency_minutes"`

	// DebounceWindow coalesces HEAD-change bursts.
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		TrackingLogFile:        DefaultTrackingLogFile,
		UpdateFrequencyMinutes: 5,
		DebounceWindow:         300 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TrackingRepoPath == "" {
		return fmt.Errorf("tracking_repo_path is required")
	}
	if c.UpdateFrequencyMinutes < 1 || c.UpdateFrequencyMinutes > 60 {
		return fmt.Errorf("update_frequency_minutes must be between 1 and 60, got %d", c.UpdateFrequencyMinutes)
	}
	if c.TrackingLogFile == "" {
		c.TrackingLogFile = DefaultTrackingLogFile
	}
	if c.LogFilePath == "" {
		c.LogFilePath = filepath.Join(c.TrackingRepoPath, "committrail.log")
	}
	return nil
}

// Load reads configuration from cfgFile (or the default search path),
// merges environment overrides, applies defaults, and validates.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine; env and flags still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("tracking_log_file", d.TrackingLogFile)
	v.SetDefault("update_frequency_minutes", d.UpdateFrequencyMinutes)
	v.SetDefault("debounce_window", d.DebounceWindow)
	v.SetDefault("excluded_branches", []string{})
	v.SetDefault("repositories", []string{})
}
