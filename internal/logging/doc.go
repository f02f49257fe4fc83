// Package logging builds slog loggers with console and JSON handlers and
// standardized structured field names for session, stage, and provider
// attribution.
package logging
