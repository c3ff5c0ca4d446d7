// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// ConfigFilePath is the default location for the configuration file.
const ConfigFilePath = "/etc/tizonia/config.yaml"

// Config represents the complete tizonia-player configuration.
type Config struct {
	// Playlists contains named playlist configurations.
	Playlists map[string]PlaylistConfig `yaml:"playlists" koanf:"playlists"`

	// Default configuration used when a playlist doesn't override a field.
	Default PlaylistConfig `yaml:"default" koanf:"default"`

	// Graph settings shared by every graph instance.
	Graph GraphConfig `yaml:"graph" koanf:"graph"`

	// Health settings for the /healthz, /metrics, and /events endpoints.
	Health HealthConfig `yaml:"health" koanf:"health"`
}

// PlaylistConfig describes one playlist: its entries and which graph
// variant (spec section 4.5) should play them.
type PlaylistConfig struct {
	URIs    []string `yaml:"uris" koanf:"uris"`
	Variant string   `yaml:"variant" koanf:"variant"` // "decoder", "http_server", "streaming_service", "chromecast", "youtube"
	Shuffle bool     `yaml:"shuffle" koanf:"shuffle"`
	Repeat  bool     `yaml:"repeat" koanf:"repeat"`
}

// GraphConfig contains settings shared by every graph a playlist spawns.
type GraphConfig struct {
	QueueCapacity  int           `yaml:"queue_capacity" koanf:"queue_capacity"`     // command queue buffer size (spec section 4.2)
	CommandTimeout time.Duration `yaml:"command_timeout" koanf:"command_timeout"`   // validated as non-negative only; Enqueue does not use it and blocks until space frees or its context ends
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"` // grace period for the supervisor's stop
}

// HealthConfig contains health/metrics/events server settings.
type HealthConfig struct {
	Addr          string `yaml:"addr" koanf:"addr"`                   // health endpoint address (default "127.0.0.1:9998")
	EventsEnabled bool   `yaml:"events_enabled" koanf:"events_enabled"` // enable the /events WebSocket stream
}

// knownVariants lists the graph variant names a playlist may select,
// mirroring graphfsm.Variant (spec section 4.5's graph family).
var knownVariants = map[string]bool{
	"decoder": true, "http_server": true, "streaming_service": true,
	"chromecast": true, "youtube": true,
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 - Config path is from administrator-controlled configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// atomicFile abstracts file operations used by Save for testability.
type atomicFile interface {
	Write([]byte) (int, error)
	Sync() error
	Chmod(os.FileMode) error
	Close() error
	Name() string
}

// atomicCreateTemp is the injectable temp-file creator used by Save.
type atomicCreateTemp func(dir, pattern string) (atomicFile, error)

func defaultCreateTemp(dir, pattern string) (atomicFile, error) {
	return os.CreateTemp(dir, pattern) // #nosec G304
}

// Save backs up the existing file at path (if any) and then writes the
// configuration atomically: write to a temp file in the same directory,
// sync, then rename, so a crash mid-write leaves either the old file or
// the new file, never a partial one. The backup directory is chosen by
// GetBackupDir and pruned to DefaultKeepBackups afterward, so a daemon
// rewriting its own config on every playlist edit doesn't silently lose
// the ability to recover a bad edit, nor accumulate backups forever.
func (c *Config) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		backupDir := GetBackupDir(path)
		if _, err := BackupConfig(path, backupDir); err != nil {
			return fmt.Errorf("failed to back up existing config: %w", err)
		}
		if _, err := CleanOldBackups(backupDir, filepath.Base(path), DefaultKeepBackups); err != nil {
			return fmt.Errorf("failed to prune old config backups: %w", err)
		}
	}
	return c.saveWith(path, defaultCreateTemp)
}

func (c *Config) saveWith(path string, createTemp atomicCreateTemp) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)

	tmpFile, err := createTemp(dir, ".config.*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp config file: %w", err)
	}

	// Config files may name local URIs and station metadata; restrict to
	// owner+group rather than leaving it world-readable.
	if err := tmpFile.Chmod(0640); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp config file: %w", err)
	}

	success = true
	return nil
}

// GetPlaylistConfig returns configuration for a named playlist, falling
// back to Default for any unset field.
func (c *Config) GetPlaylistConfig(name string) PlaylistConfig {
	result := c.Default

	if pCfg, ok := c.Playlists[name]; ok {
		if len(pCfg.URIs) > 0 {
			result.URIs = pCfg.URIs
		}
		if pCfg.Variant != "" {
			result.Variant = pCfg.Variant
		}
		result.Shuffle = pCfg.Shuffle
		result.Repeat = pCfg.Repeat
	}

	return result
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	if err := c.Default.ValidatePartial(); err != nil {
		return fmt.Errorf("default playlist: %w", err)
	}

	for name, pCfg := range c.Playlists {
		if err := pCfg.ValidatePartial(); err != nil {
			return fmt.Errorf("playlist %q: %w", name, err)
		}
	}

	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph config: %w", err)
	}

	return nil
}

// Validate checks graph configuration for invalid values.
func (g *GraphConfig) Validate() error {
	if g.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must not be negative")
	}
	if g.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative")
	}
	return nil
}

// ValidatePartial checks playlist configuration for invalid values,
// allowing fields to be unset (they inherit from Default).
func (p *PlaylistConfig) ValidatePartial() error {
	if p.Variant != "" && !knownVariants[p.Variant] {
		return fmt.Errorf("variant must be one of decoder, http_server, streaming_service, chromecast, youtube (got %q)", p.Variant)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Playlists: make(map[string]PlaylistConfig),
		Default: PlaylistConfig{
			Variant: "decoder",
			Repeat:  false,
		},
		Graph: GraphConfig{
			QueueCapacity:   64,
			CommandTimeout:  5 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Health: HealthConfig{
			Addr:          "127.0.0.1:9998",
			EventsEnabled: true,
		},
	}
}
