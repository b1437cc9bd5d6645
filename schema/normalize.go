package schema

import (
	"strings"
	"unicode"
)

// Settings keys accepted by the settings store.
const (
	SettingHomepage            = "homepage"
	SettingSearchEngine        = "search_engine"
	SettingDarkMode            = "dark_mode"
	SettingEnableNotifications = "enable_notifications"
	SettingDownloadPath        = "download_path"
	SettingBookmarksBar        = "bookmarks_bar_visible"
)

var settingKeys = []string{
	SettingHomepage,
	SettingSearchEngine,
	SettingDarkMode,
	SettingEnableNotifications,
	SettingDownloadPath,
	SettingBookmarksBar,
}

// SettingKeys returns the supported settings keys in display order.
func SettingKeys() []string {
	out := make([]string, len(settingKeys))
	copy(out, settingKeys)
	return out
}

// NormalizeSettingKey maps user input (camelCase, dashes, spaces) to a settings key.
func NormalizeSettingKey(key string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(key) {
		switch {
		case r == '-' || r == ' ':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	switch normalized {
	case "search", "searchengine":
		normalized = SettingSearchEngine
	case "downloads", "downloadpath":
		normalized = SettingDownloadPath
	case "bookmarks_bar":
		normalized = SettingBookmarksBar
	}
	for _, candidate := range settingKeys {
		if candidate == normalized {
			return normalized, nil
		}
	}
	return "", ErrUnknownSetting
}

// NormalizeFolderTitle trims a folder title and collapses inner whitespace.
func NormalizeFolderTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
