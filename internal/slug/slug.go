// Package slug derives URL-safe identifiers from display names.
package slug

import (
	"regexp"
	"strings"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	disallowed = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify trims name, lowercases it, collapses whitespace runs into a single
// hyphen and drops every character outside [a-z0-9-].
//
// Slugify is idempotent but not injective: "North East" and "north-east" map
// to the same slug.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespace.ReplaceAllString(s, "-")
	return disallowed.ReplaceAllString(s, "")
}
