package schema

import (
	"errors"
	"testing"
)

func TestNormalizeSettingKey(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{"snake", "homepage", SettingHomepage, true},
		{"camel", "darkMode", SettingDarkMode, true},
		{"dashes", "enable-notifications", SettingEnableNotifications, true},
		{"alias", "search", SettingSearchEngine, true},
		{"camel-path", "downloadPath", SettingDownloadPath, true},
		{"spaces", " bookmarks bar ", SettingBookmarksBar, true},
		{"unknown", "volume", "", false},
		{"empty", "", "", false},
	}

	for _, tc := range cases {
		got, err := NormalizeSettingKey(tc.input)
		if tc.valid && err != nil {
			t.Fatalf("case %q expected valid, got error: %v", tc.name, err)
		}
		if !tc.valid {
			if !errors.Is(err, ErrUnknownSetting) {
				t.Fatalf("case %q expected unknown setting, got %v", tc.name, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("case %q expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestNormalizeShellConfigDefaults(t *testing.T) {
	cfg, err := NormalizeShellConfig(ShellConfig{ProfileDir: t.TempDir(), DownloadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Homepage != DefaultHomepage {
		t.Fatalf("expected default homepage, got %q", cfg.Homepage)
	}
	if cfg.SearchEngine != DefaultSearchEngine {
		t.Fatalf("expected default search engine, got %q", cfg.SearchEngine)
	}
	if cfg.DefaultTheme != ThemeLight {
		t.Fatalf("expected light theme, got %q", cfg.DefaultTheme)
	}
}

func TestNormalizeShellConfigRejectsBadSearchEngine(t *testing.T) {
	_, err := NormalizeShellConfig(ShellConfig{
		ProfileDir:   t.TempDir(),
		DownloadDir:  t.TempDir(),
		SearchEngine: "search?q=",
	})
	if !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("expected invalid setting, got %v", err)
	}
}

func TestNormalizeThemeName(t *testing.T) {
	if got, ok := NormalizeThemeName("Dark"); !ok || got != ThemeDark {
		t.Fatalf("expected dark theme, got %q %v", got, ok)
	}
	if _, ok := NormalizeThemeName("outrun"); ok {
		t.Fatalf("expected unknown theme to be rejected")
	}
	if ThemeFor(true) != ThemeDark || ThemeFor(false) != ThemeLight {
		t.Fatalf("unexpected ThemeFor mapping")
	}
}
