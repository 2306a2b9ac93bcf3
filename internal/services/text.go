package services

import (
	"regexp"
	"strings"
)

// maxTitleRunes matches the width of title and subject columns.
const maxTitleRunes = 255

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// clip shortens s to at most max runes.
func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
