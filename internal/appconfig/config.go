package appconfig

import (
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/blinx/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	ProfileDir    string          `mapstructure:"profile_dir" yaml:"profile_dir"`
	Homepage      string          `mapstructure:"homepage" yaml:"homepage"`
	SearchEngine  string          `mapstructure:"search_engine" yaml:"search_engine"`
	Theme         string          `mapstructure:"theme" yaml:"theme"`
	Browser       BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Downloads     DownloadsConfig `mapstructure:"downloads" yaml:"downloads"`
	SSH           SSHConfig       `mapstructure:"ssh" yaml:"ssh"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// BrowserConfig controls how Chromium is launched or attached to.
type BrowserConfig struct {
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	RemoteURL    string   `mapstructure:"remote_url" yaml:"remote_url"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Flags        []string `mapstructure:"flags" yaml:"flags"`
}

// DownloadsConfig controls where downloads are saved by default.
type DownloadsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SSHConfig controls the remote terminal chrome. It is off while Addr is
// empty.
type SSHConfig struct {
	Addr           string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath    string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeys string `mapstructure:"authorized_keys" yaml:"authorized_keys"`
	TOTPSecret     string `mapstructure:"totp_secret" yaml:"totp_secret"`
}

// Enabled reports whether the SSH chrome should be served.
func (c SSHConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		ProfileDir:    filepath.Join(home, ".blinx", "profile"),
		Homepage:      schema.DefaultHomepage,
		SearchEngine:  schema.DefaultSearchEngine,
		Theme:         string(schema.DefaultTheme),
		Browser: BrowserConfig{
			ExecPath:     "",
			Headless:     false,
			RemoteURL:    "",
			WindowWidth:  1280,
			WindowHeight: 800,
			Flags:        []string{},
		},
		Downloads: DownloadsConfig{
			Dir: filepath.Join(home, "Downloads"),
		},
		SSH: SSHConfig{
			Addr:           "",
			HostKeyPath:    filepath.Join(home, ".blinx", "ssh_host_ed25519_key"),
			AuthorizedKeys: filepath.Join(home, ".blinx", "authorized_keys"),
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".blinx", "config.yaml"), nil
}

// ShellConfig converts the file config into the defaults consumed by the
// tab session manager and its stores.
func (c Config) ShellConfig() (schema.ShellConfig, error) {
	theme, _ := schema.NormalizeThemeName(c.Theme)
	return schema.NormalizeShellConfig(schema.ShellConfig{
		ProfileDir:   c.ProfileDir,
		Homepage:     c.Homepage,
		SearchEngine: c.SearchEngine,
		DownloadDir:  c.Downloads.Dir,
		DefaultTheme: theme,
	})
}
