// Package logx annotates pslog loggers with browser context.
package logx

import (
	"net/url"
	"strings"

	"pkt.systems/blinx/schema"
	"pkt.systems/pslog"
)

// WithTabID annotates log with a tab id when available.
func WithTabID(log pslog.Logger, tabID schema.TabID) pslog.Logger {
	if tabID != "" {
		log = log.With("tab", tabID)
	}
	return log
}

// WithURL annotates log with a redacted form of raw: query strings and
// fragments are dropped and inline documents are shortened to their scheme.
func WithURL(log pslog.Logger, raw string) pslog.Logger {
	if raw == "" {
		return log
	}
	return log.With("url", RedactURL(raw))
}

// RedactURL strips the parts of a url that may carry user data.
func RedactURL(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		return "data:"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	parsed.User = nil
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}
