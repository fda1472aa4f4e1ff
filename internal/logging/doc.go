// Package logging constructs the slog loggers used across the pipeline.
//
// It supports console and json output formats, mirrors log output into the
// configured log directory, and exposes thin attribute helpers so call sites
// stay terse. Tests use NewNop to silence output.
package logging
