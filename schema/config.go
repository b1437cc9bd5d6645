package schema

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultHomepage is loaded by tabs opened without a url.
	DefaultHomepage = "https://www.google.com"
	// DefaultSearchEngine is the query template used for search input.
	DefaultSearchEngine = "https://www.google.com/search?q="
)

// ShellConfig defines defaults for the tab session manager and its stores.
type ShellConfig struct {
	ProfileDir   string
	Homepage     string
	SearchEngine string
	DownloadDir  string
	DefaultTheme ThemeName
}

// NormalizeShellConfig applies defaults and validates the config.
func NormalizeShellConfig(cfg ShellConfig) (ShellConfig, error) {
	if cfg.ProfileDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ShellConfig{}, err
		}
		cfg.ProfileDir = filepath.Join(home, ".blinx", "profile")
	}
	if cfg.DownloadDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ShellConfig{}, err
		}
		cfg.DownloadDir = filepath.Join(home, "Downloads")
	}
	cfg.Homepage = strings.TrimSpace(cfg.Homepage)
	if cfg.Homepage == "" {
		cfg.Homepage = DefaultHomepage
	}
	cfg.SearchEngine = strings.TrimSpace(cfg.SearchEngine)
	if cfg.SearchEngine == "" {
		cfg.SearchEngine = DefaultSearchEngine
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = DefaultTheme
	}
	if err := ValidateSearchTemplate(cfg.SearchEngine); err != nil {
		return ShellConfig{}, err
	}
	if _, ok := NormalizeThemeName(string(cfg.DefaultTheme)); !ok {
		return ShellConfig{}, errors.New("unsupported default theme")
	}
	return cfg, nil
}

// ValidateSearchTemplate ensures the template is an absolute http(s) url prefix.
func ValidateSearchTemplate(template string) error {
	parsed, err := url.Parse(strings.TrimSpace(template))
	if err != nil {
		return ErrInvalidSetting
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidSetting
	}
	if parsed.Host == "" {
		return ErrInvalidSetting
	}
	return nil
}
