// Package stages implements the pipeline stage handlers: transcription,
// translation, synthesis, and validation. Each handler reads its inputs from
// the store, reports progress through the tracker, and writes its outputs
// back as artifacts or session fields. Handlers never decide stage
// transitions; that is the orchestrator's job.
package stages
