package core

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"pkt.systems/blinx/internal/internalpage"
	"pkt.systems/blinx/schema"
)

// passthroughSchemes load as typed, without search or https rewriting.
var passthroughSchemes = []string{"http://", "https://", "about:", "data:", "file://"}

// NormalizeURL turns URL bar input into a navigation target.
//
// Internal pages come back in their canonical internal:// form; any other
// internal path yields ErrInvalidInternalURL. Input containing a space or no
// dot is rewritten against searchTemplate. Input without a scheme gets
// https:// prepended. The result is validated before it is returned.
func NormalizeURL(input, searchTemplate string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty input: %w", schema.ErrInvalidURL)
	}
	if internalpage.IsInternal(input) {
		path := internalpage.Path(input)
		if !internalpage.Allowed(path) {
			return "", fmt.Errorf("%s: %w", input, schema.ErrInvalidInternalURL)
		}
		return schema.InternalScheme + path, nil
	}
	candidate := input
	switch {
	case hasPassthroughScheme(input):
	case strings.Contains(input, " ") || !strings.Contains(input, "."):
		candidate = searchTemplate + escapeQuery(input)
	default:
		candidate = "https://" + input
	}
	if err := validateURL(candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

// SearchURL rewrites a query against the search template, percent-encoding
// the whole query.
func SearchURL(searchTemplate, query string) string {
	return searchTemplate + escapeQuery(query)
}

func escapeQuery(query string) string {
	return strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

func hasPassthroughScheme(input string) bool {
	lower := strings.ToLower(input)
	for _, prefix := range passthroughSchemes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func validateURL(candidate string) error {
	parsed, err := url.Parse(candidate)
	if err != nil {
		return fmt.Errorf("%s: %w", candidate, schema.ErrInvalidURL)
	}
	if !parsed.IsAbs() {
		return fmt.Errorf("%s: %w", candidate, schema.ErrInvalidURL)
	}
	switch parsed.Scheme {
	case "http", "https":
		host := parsed.Hostname()
		if host == "" {
			return fmt.Errorf("%s: missing host: %w", candidate, schema.ErrInvalidURL)
		}
		if _, err := idna.Lookup.ToASCII(host); err != nil {
			return fmt.Errorf("%s: %w", candidate, schema.ErrInvalidURL)
		}
	}
	return nil
}
