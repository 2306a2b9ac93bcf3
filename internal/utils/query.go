// Package utils holds parsing helpers for query-string values.
package utils

import (
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// IntOr parses s as a base-10 int, returning def when s is blank or
// malformed. Surrounding spaces are ignored.
func IntOr(s string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return def
}

// BoolOr parses s with strconv.ParseBool ("1", "true", "f", ...) and
// returns def when s is blank or malformed.
func BoolOr(s string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return b
	}
	return def
}

// ParsePage reads page and page_size values. Pages start at 1; the size
// defaults to DefaultPageSize and is held within [1, MaxPageSize].
func ParsePage(page, size string) (int, int) {
	p := IntOr(page, 1)
	if p < 1 {
		p = 1
	}
	s := IntOr(size, DefaultPageSize)
	switch {
	case s < 1:
		s = 1
	case s > MaxPageSize:
		s = MaxPageSize
	}
	return p, s
}

// TotalPages is the number of pages of size needed for total items.
func TotalPages(total int64, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
