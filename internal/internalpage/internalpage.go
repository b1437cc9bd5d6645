package internalpage

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"pkt.systems/blinx/schema"
)

//go:embed pages/*.html
var pagesFS embed.FS

var pages = template.Must(template.ParseFS(pagesFS, "pages/*.html"))

// SettingsPath is the only whitelisted internal page.
const SettingsPath = "settings"

const dataPrefix = "data:text/html;charset=utf-8;base64,"

// IsInternal reports whether raw uses the internal scheme.
func IsInternal(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), schema.InternalScheme)
}

// Path returns the page path of an internal URL.
func Path(raw string) string {
	raw = strings.TrimSpace(raw)
	if !IsInternal(raw) {
		return ""
	}
	path := raw[len(schema.InternalScheme):]
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.ToLower(strings.Trim(path, "/"))
}

// Allowed reports whether path names a whitelisted page.
func Allowed(path string) bool {
	return path == SettingsPath
}

// Resolve renders the page at path into a loadable URL.
func Resolve(path string, current schema.Settings) (string, error) {
	if !Allowed(path) {
		return "", fmt.Errorf("%s%s: %w", schema.InternalScheme, path, schema.ErrInvalidInternalURL)
	}
	var buf bytes.Buffer
	data := struct {
		Settings schema.Settings
		Theme    schema.ThemeName
	}{
		Settings: current,
		Theme:    schema.ThemeFor(current.DarkMode),
	}
	if err := pages.ExecuteTemplate(&buf, path+".html", data); err != nil {
		return "", err
	}
	return dataPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsRendered reports whether raw is a URL produced by Resolve.
func IsRendered(raw string) bool {
	return strings.HasPrefix(raw, dataPrefix)
}
