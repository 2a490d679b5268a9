// Package logx bootstraps a structured logger threaded through the
// pipeline rather than relied on as a package-level global (DESIGN
// NOTES §9), grounded on the teacher's zerolog bootstrap in
// cmd/cryptorun/main.go.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger: a human-readable console writer when human is
// true (interactive TTY runs), structured JSON to w otherwise (the
// teacher's dev-vs-prod split, cmd/cryptorun/main.go).
func New(w io.Writer, human bool, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if human {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default is New(os.Stderr, ...) at info level, for callers that don't
// need TTY detection (tests, one-off tools).
func Default() zerolog.Logger {
	return New(os.Stderr, false, zerolog.InfoLevel)
}
