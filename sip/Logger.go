package sip

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the zerolog.Logger the subscription core logs
// through, writing to w (stderr if nil).
func NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// NopLogger discards everything, for callers that don't want tracing.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
