// Package progress tracks per-session stage progress for polling consumers.
// Records advance monotonically within a stage and reset on stage
// transitions.
package progress
