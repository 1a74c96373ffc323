// Package logging provides the diagnostic logger used by the telemetry
// client's verbose mode.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Verbose enables debug-level diagnostics. When false the returned
	// logger discards everything, which is the default for an embedded
	// SDK: diagnostics must never pollute the host's output unasked.
	Verbose bool
	// Pretty switches to the human-readable console writer.
	Pretty bool
	// Output overrides the destination (defaults to stderr).
	Output io.Writer
}

// New builds the client diagnostic logger.
func New(cfg Config) zerolog.Logger {
	if !cfg.Verbose {
		return zerolog.Nop()
	}

	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).Level(zerolog.DebugLevel).With().
		Timestamp().
		Str("component", "telemetry").
		Logger()
}
