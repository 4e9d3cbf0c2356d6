package log

import (
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// timeFormat matches the short clock stamp printed in front of each line.
const timeFormat = "15:04:05"

// NewSecureLogger creates a new slog.Logger with secure handling.
// Output is formatted by charmbracelet/log (colored when w is a terminal).
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Info
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(newCharmHandler(w, verbose, charmlog.TextFormatter)))
}

// NewSecureJSONLogger creates a new slog.Logger with secure handling
// that writes one JSON object per line. Useful when the mirror runs in CI
// and the log is collected as an artifact.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(newCharmHandler(w, verbose, charmlog.JSONFormatter)))
}

func newCharmHandler(w io.Writer, verbose bool, formatter charmlog.Formatter) *charmlog.Logger {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: formatter == charmlog.TextFormatter,
		TimeFormat:      timeFormat,
		Formatter:       formatter,
	})
}
