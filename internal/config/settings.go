// Package config resolves prism settings from defaults, an optional YAML
// settings file, and caller overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"prism/internal/logging"
)

const (
	DefaultFilename   = "prism-theme"
	DefaultDebounceMS = 200
	MinDebounceMS     = 50
	DefaultTheme      = "default"
)

// Settings is the resolved configuration surface.
type Settings struct {
	LogLevel     logging.Level
	DebounceMS   int
	Filename     string
	AutoLoad     bool
	DefaultTheme string
	Themes       []string
	Hook         string
	StatusAddr   string
	DataDir      string
}

// fileSettings mirrors the YAML document. Pointer fields distinguish "not
// set" from zero values so the file only overrides what it mentions.
type fileSettings struct {
	LogLevel     *string  `yaml:"log_level"`
	DebounceMS   *int     `yaml:"debounce_ms"`
	Filename     *string  `yaml:"filename"`
	AutoLoad     *bool    `yaml:"auto_load"`
	DefaultTheme *string  `yaml:"default_theme"`
	Themes       []string `yaml:"themes"`
	Hook         *string  `yaml:"hook"`
	StatusAddr   *string  `yaml:"status_addr"`
	DataDir      *string  `yaml:"data_dir"`
}

func Defaults() Settings {
	return Settings{
		LogLevel:     logging.LevelInfo,
		DebounceMS:   DefaultDebounceMS,
		Filename:     DefaultFilename,
		AutoLoad:     true,
		DefaultTheme: DefaultTheme,
	}
}

// Load reads the settings file at path over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Settings, error) {
	settings := Defaults()
	if strings.TrimSpace(path) == "" {
		return normalize(settings), nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return normalize(settings), nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	parsed := fileSettings{}
	if err := yaml.Unmarshal(payload, &parsed); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}

	if parsed.LogLevel != nil {
		level, ok := logging.ParseLevel(*parsed.LogLevel)
		if !ok {
			return Settings{}, fmt.Errorf("parse settings %s: unknown log_level %q", path, *parsed.LogLevel)
		}
		settings.LogLevel = level
	}
	if parsed.DebounceMS != nil {
		settings.DebounceMS = *parsed.DebounceMS
	}
	if parsed.Filename != nil {
		settings.Filename = *parsed.Filename
	}
	if parsed.AutoLoad != nil {
		settings.AutoLoad = *parsed.AutoLoad
	}
	if parsed.DefaultTheme != nil {
		settings.DefaultTheme = *parsed.DefaultTheme
	}
	if len(parsed.Themes) > 0 {
		settings.Themes = parsed.Themes
	}
	if parsed.Hook != nil {
		settings.Hook = *parsed.Hook
	}
	if parsed.StatusAddr != nil {
		settings.StatusAddr = *parsed.StatusAddr
	}
	if parsed.DataDir != nil {
		settings.DataDir = *parsed.DataDir
	}

	return normalize(settings), nil
}

func normalize(settings Settings) Settings {
	if settings.DebounceMS < MinDebounceMS {
		settings.DebounceMS = MinDebounceMS
	}
	settings.Filename = strings.TrimSpace(settings.Filename)
	if settings.Filename == "" {
		settings.Filename = DefaultFilename
	}
	settings.DefaultTheme = strings.TrimSpace(settings.DefaultTheme)
	if settings.DefaultTheme == "" {
		settings.DefaultTheme = DefaultTheme
	}
	if strings.TrimSpace(settings.DataDir) == "" {
		settings.DataDir = defaultDataDir()
	}
	return settings
}

// StatePath is the resolved location of the shared state file.
func (settings Settings) StatePath() string {
	return filepath.Join(settings.DataDir, settings.Filename)
}

// Debounce converts the configured delay to a duration.
func (settings Settings) Debounce() time.Duration {
	return time.Duration(settings.DebounceMS) * time.Millisecond
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "prism")
	}
	return filepath.Join(base, "prism")
}

// DefaultSettingsPath is where Load looks when the caller does not name a
// settings file.
func DefaultSettingsPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}
