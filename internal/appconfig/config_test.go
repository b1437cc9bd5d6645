package appconfig

import (
	"testing"

	"pkt.systems/blinx/schema"
)

func TestDefaultConfigIsHeaded(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Browser.Headless {
		t.Fatalf("expected headless to default false")
	}
	if cfg.Browser.RemoteURL != "" {
		t.Fatalf("expected no remote url by default")
	}
	if cfg.SSH.Enabled() {
		t.Fatalf("expected ssh chrome to default off")
	}
}

func TestShellConfigFromDefaults(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	shell, err := cfg.ShellConfig()
	if err != nil {
		t.Fatalf("shell config: %v", err)
	}
	if shell.Homepage != schema.DefaultHomepage || shell.SearchEngine != schema.DefaultSearchEngine {
		t.Fatalf("unexpected shell defaults: %+v", shell)
	}
	if shell.ProfileDir != cfg.ProfileDir || shell.DownloadDir != cfg.Downloads.Dir {
		t.Fatalf("expected directories to carry over, got %+v", shell)
	}
	if shell.DefaultTheme != schema.ThemeLight {
		t.Fatalf("expected light theme, got %q", shell.DefaultTheme)
	}
}

func TestShellConfigRejectsBadSearchEngine(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.SearchEngine = "ftp://search"
	if _, err := cfg.ShellConfig(); err == nil {
		t.Fatalf("expected invalid search engine error")
	}
}
