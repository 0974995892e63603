// Package logging builds the slog loggers used across capsync.
//
// It provides console and JSON handlers, multi-destination output (stdout
// plus the daemon log file), typed attribute helpers, and the standardized
// field keys components attach to their records so session and track context
// stays greppable in structured output.
package logging
