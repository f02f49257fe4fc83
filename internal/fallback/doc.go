// Package fallback runs an ordered chain of interchangeable methods until
// one produces a usable artifact, keeping a structured log of every attempt.
//
// Failure inspection is a first-class return value: on exhaustion the
// ExhaustedError lists each invoked method with its cause, so callers can
// report why every alternative failed rather than just that all did.
package fallback
