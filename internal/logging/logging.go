// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a zerolog logger writing to stdout: human-readable for local
// and dev environments, JSON everywhere else. An unknown level falls back
// to info.
func New(env, level string) zerolog.Logger {
	return newWithWriter(os.Stdout, env, level)
}

func newWithWriter(out io.Writer, env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	w := out
	if env == "" || env == "dev" || env == "local" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime, NoColor: out != os.Stdout}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "roster").Logger()
}
