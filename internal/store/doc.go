// Package store persists dubbing sessions and their intermediate artifacts
// in SQLite.
//
// The Store is the single source of truth shared across pipeline components:
// session rows drive the stage machine, artifact rows hold segment
// collections and validation results as whole-payload JSON swaps, and
// progress rows back the tracker so a restarted process can resume a session
// where it left off.
package store
