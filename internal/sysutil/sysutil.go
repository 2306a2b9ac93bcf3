// Package sysutil holds process setup helpers shared by the binaries.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel sets the global zerolog level. "warning" is accepted for
// warn; unknown or empty values fall back to info.
func SetLogLevel(lvl string) zerolog.Level {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "warning" {
		lvl = "warn"
	}
	level, err := zerolog.ParseLevel(lvl)
	if err != nil || lvl == "" || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// SetupLogging configures the global logger: level, RFC 3339 timestamps,
// and a human-readable console format when pretty is set. Every line
// carries the service name so logs from the API and the live chat can be
// told apart once shipped.
func SetupLogging(w io.Writer, level, service string, pretty bool) {
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// FirstNonEmpty returns the first argument that is not blank, trimmed.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
