// Package logging assembles structured slog loggers and formatting helpers used
// across digistation.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and defines the shared field keys capture code uses to tag log
// lines with session IDs, event IDs, and file stems. WarnWithContext and
// ErrorWithContext guarantee every failure line names a next step. Per-session log files are
// attached with NewSessionLogger, which tees records into a JSON file while
// the console keeps its usual shape. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
package logging
