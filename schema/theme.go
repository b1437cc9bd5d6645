package schema

import "strings"

const (
	// ThemeLight is the default palette.
	ThemeLight ThemeName = "light"
	// ThemeDark is applied when dark mode is enabled.
	ThemeDark ThemeName = "dark"
)

// DefaultTheme is the default UI theme name.
const DefaultTheme = ThemeLight

// ThemeFor maps the dark mode preference to a theme.
func ThemeFor(darkMode bool) ThemeName {
	if darkMode {
		return ThemeDark
	}
	return ThemeLight
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light", "default":
		return ThemeLight, true
	case "dark", "dark-mode", "dark_mode":
		return ThemeDark, true
	default:
		return "", false
	}
}
