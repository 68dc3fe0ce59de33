// Package sanitize provides text sanitization utilities for user-provided
// input such as intake messages and contact notes.
package sanitize

import (
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes all HTML tags from a string, making it safe for
// text-only display and storage.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	// Decode common entities, then strip again to catch encoded tags.
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a user-provided text field for storage.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr is a helper for optional string pointers.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}
