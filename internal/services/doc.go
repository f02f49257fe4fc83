// Package services defines the shared error taxonomy and context plumbing
// used across pipeline components.
//
// Sentinel errors classify failures so the orchestrator can distinguish
// conditions that warrant a retry from those that need a configuration fix or
// a different request. Wrap tags errors with a sentinel while preserving the
// underlying cause for errors.Is / errors.As inspection.
package services
