// Package logging builds the diagnostic logger used across hitchain.
//
// Diagnostics go to stderr so that reports written to stdout stay machine
// readable. Verbosity is counted like -v flags: 0 shows warnings and errors,
// 1 adds debug output, 2 and above adds request and response bodies.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	Verbosity int
	NoColor   bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// JSON writes one JSON object per line instead of human readable text.
	JSON bool
}

// LevelFor maps a -v count to a log level.
func LevelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	if !opts.JSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(w).
		Level(LevelFor(opts.Verbosity)).
		With().
		Timestamp().
		Logger()
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
