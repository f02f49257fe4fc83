// Package segments edits and reshapes diarized segment collections: batch
// partial edits with per-entry error reporting, speaker label
// canonicalization, and silence-based merging of consecutive same-speaker
// segments.
package segments
