package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds per-user pytron settings persisted in the pytron home.
type Config struct {
	// UVVersion is the uv release downloaded when no local binary is found.
	UVVersion string `yaml:"uv_version"`
	// DefaultArchive is the archive name assumed by `run` when no target is given.
	DefaultArchive string `yaml:"default_archive"`
	// Entrypoint is the script executed from an extracted archive.
	Entrypoint string `yaml:"entrypoint"`
	// IgnorePatterns are extra glob patterns always excluded when packaging.
	IgnorePatterns []string `yaml:"ignore_patterns"`
	// DownloadTimeout bounds the uv binary download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

const (
	// SettingsFilename is the name of the settings file inside the pytron home.
	SettingsFilename = "pytron-settings.yaml"

	// HomeEnvVar overrides the pytron home location.
	HomeEnvVar = "PYTRON_HOME"

	// DefaultUVVersion is the uv release fetched when settings do not pin one.
	DefaultUVVersion = "0.7.2"

	// DefaultArchiveName is the conventional project archive name.
	DefaultArchiveName = "robot.zip"

	// DefaultEntrypoint is the conventional entry script inside an archive.
	DefaultEntrypoint = "main.py"

	// DefaultDownloadTimeout bounds the uv binary download.
	DefaultDownloadTimeout = 5 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// defaultHomeDirName is used under the user home when PYTRON_HOME is unset.
	defaultHomeDirName = "pytron_home"
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Home resolves the pytron home directory: the PYTRON_HOME environment
// variable when set, otherwise <user home>/pytron_home. The directory is not
// created here.
func Home() string {
	if path := os.Getenv(HomeEnvVar); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, defaultHomeDirName)
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		UVVersion:       DefaultUVVersion,
		DefaultArchive:  DefaultArchiveName,
		Entrypoint:      DefaultEntrypoint,
		DownloadTimeout: DefaultDownloadTimeout,
	}
}

// Load reads configuration from the provided path and fills in defaults.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(Home(), SettingsFilename)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	Normalize(&cfg)

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = filepath.Join(Home(), SettingsFilename)
	}

	Normalize(cfg)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Normalize fills unset fields with their defaults.
func Normalize(cfg *Config) {
	if cfg.UVVersion == "" {
		cfg.UVVersion = DefaultUVVersion
	}

	if cfg.DefaultArchive == "" {
		cfg.DefaultArchive = DefaultArchiveName
	}

	if cfg.Entrypoint == "" {
		cfg.Entrypoint = DefaultEntrypoint
	}

	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
}
