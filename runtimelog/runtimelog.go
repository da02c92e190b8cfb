// Package runtimelog wraps zerolog for the runtime's ambient structured
// logging. Every subsystem (scheduler, heap, safepoint, snapshot) logs
// through this package instead of fmt.Fprintf(os.Stderr, ...), replacing the
// teacher's ad-hoc stderr writes (db/checkpoint.go's
// "fmt.Fprintf(os.Stderr, \"Checkpoint error: %v\\n\", err)" and
// server/scheduler.go's "log.Printf" call sites) with leveled, structured
// events.
package runtimelog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It defaults to a human-readable
// console writer; embedders can call Configure to redirect and adjust
// verbosity.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Configure replaces the global logger's destination and minimum level.
// Called by the host CLI (cmd/rayavm) from its configuration layer.
func Configure(w io.Writer, level zerolog.Level, pretty bool) {
	var base zerolog.Logger
	if pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(w)
	}
	Logger = base.Level(level).With().Timestamp().Logger()
}

// Component returns a sub-logger tagged with the originating subsystem, so
// log lines can be filtered by component in aggregate log views.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
