package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected default config version, got %d", cfg.ConfigVersion)
	}
	if cfg.Browser.WindowWidth != 1280 || cfg.Browser.WindowHeight != 800 {
		t.Fatalf("unexpected window defaults: %+v", cfg.Browser)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
homepage: https://example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
homepage: https://example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing config_version error, got %v", err)
	}
}

func TestLoadReadsBrowserSection(t *testing.T) {
	t.Setenv("BLINX_TEST_CHROME", "/opt/chrome")
	path := writeConfig(t, `
config_version: 1
homepage: https://example.com
theme: dark
browser:
  exec_path: $BLINX_TEST_CHROME/chrome
  headless: true
  remote_url: ws://127.0.0.1:9222
  flags:
    - no-sandbox
    - lang=en-US
downloads:
  dir: /tmp/blinx-downloads
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Browser.ExecPath != "/opt/chrome/chrome" {
		t.Fatalf("expected expanded exec path, got %q", cfg.Browser.ExecPath)
	}
	if !cfg.Browser.Headless || cfg.Browser.RemoteURL != "ws://127.0.0.1:9222" {
		t.Fatalf("unexpected browser config: %+v", cfg.Browser)
	}
	if len(cfg.Browser.Flags) != 2 || cfg.Browser.Flags[1] != "lang=en-US" {
		t.Fatalf("unexpected flags: %v", cfg.Browser.Flags)
	}
	if cfg.Homepage != "https://example.com" || cfg.Theme != "dark" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Downloads.Dir != "/tmp/blinx-downloads" {
		t.Fatalf("unexpected downloads dir: %q", cfg.Downloads.Dir)
	}
}

func TestLoadRejectsInvalidRemoteURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
browser:
  remote_url: 127.0.0.1:9222
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "browser.remote_url") {
		t.Fatalf("expected remote_url error, got %v", err)
	}
}

func TestLoadRejectsUnknownTheme(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
theme: sepia
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported theme") {
		t.Fatalf("expected theme error, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func TestLoadReadsSSHSection(t *testing.T) {
	t.Setenv("BLINX_TEST_TOTP", "JBSWY3DPEHPK3PXP")
	path := writeConfig(t, `
config_version: 1
ssh:
  addr: 127.0.0.1:2222
  authorized_keys: /etc/blinx/keys
  totp_secret: $BLINX_TEST_TOTP
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.SSH.Enabled() || cfg.SSH.Addr != "127.0.0.1:2222" {
		t.Fatalf("unexpected ssh config: %+v", cfg.SSH)
	}
	if cfg.SSH.AuthorizedKeys != "/etc/blinx/keys" || cfg.SSH.TOTPSecret != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("unexpected ssh values: %+v", cfg.SSH)
	}
	if !strings.HasSuffix(cfg.SSH.HostKeyPath, "ssh_host_ed25519_key") {
		t.Fatalf("expected default host key path, got %q", cfg.SSH.HostKeyPath)
	}
}

func TestLoadRejectsBadSSHAddr(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
ssh:
  addr: localhost
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for ssh addr without port")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
