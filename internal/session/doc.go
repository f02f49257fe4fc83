// Package session defines the dubbing session data model: the stage
// lifecycle, the action transition table, segments, progress records, and
// validation results.
//
// Treat this package as the single source of truth for stage semantics; the
// orchestrator consults TransitionFor rather than encoding transitions
// itself.
package session
