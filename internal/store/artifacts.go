package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dubflow/internal/session"
)

// ArtifactKind names a per-session intermediate artifact.
type ArtifactKind string

const (
	// ArtifactDiarization holds the diarized source-language segments.
	// Segment edits apply to this kind.
	ArtifactDiarization ArtifactKind = "diarization"
	// ArtifactDiarizationRaw preserves the machine transcription exactly as
	// the provider returned it, so edit-rate metrics have a baseline.
	ArtifactDiarizationRaw ArtifactKind = "diarization_raw"
	// ArtifactTranslation holds segments carrying translated text.
	// Segment edits apply to this kind.
	ArtifactTranslation ArtifactKind = "translation"
	// ArtifactTranslationRaw preserves the machine translation baseline.
	ArtifactTranslationRaw ArtifactKind = "translation_raw"
	// ArtifactValidation holds the computed validation result.
	ArtifactValidation ArtifactKind = "validation"
)

// SaveArtifact stores a JSON-encoded artifact, replacing any prior value of
// the same kind. The single-row upsert is what keeps segment collections
// atomic: readers see either the old collection or the new one, never a mix.
func (s *Store) SaveArtifact(ctx context.Context, sessionID string, kind ArtifactKind, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s artifact: %w", kind, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO artifacts (session_id, kind, payload, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(session_id, kind) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		sessionID, string(kind), string(encoded), now,
	); err != nil {
		return fmt.Errorf("save %s artifact: %w", kind, err)
	}
	return nil
}

// ErrArtifactNotFound indicates the requested artifact kind has not been
// produced for the session yet.
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact decodes a stored artifact into target.
func (s *Store) Artifact(ctx context.Context, sessionID string, kind ArtifactKind, target any) error {
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT payload FROM artifacts WHERE session_id = ? AND kind = ?`,
		sessionID, string(kind),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s for session %s", ErrArtifactNotFound, kind, sessionID)
	}
	if err != nil {
		return fmt.Errorf("load %s artifact: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("decode %s artifact: %w", kind, err)
	}
	return nil
}

// SaveSegments stores a segment collection under the given kind.
func (s *Store) SaveSegments(ctx context.Context, sessionID string, kind ArtifactKind, segments []session.Segment) error {
	return s.SaveArtifact(ctx, sessionID, kind, segments)
}

// Segments loads a segment collection of the given kind.
func (s *Store) Segments(ctx context.Context, sessionID string, kind ArtifactKind) ([]session.Segment, error) {
	var segments []session.Segment
	if err := s.Artifact(ctx, sessionID, kind, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// SaveValidation stores a validation result, overwriting any prior result.
func (s *Store) SaveValidation(ctx context.Context, sessionID string, result session.ValidationResult) error {
	return s.SaveArtifact(ctx, sessionID, ArtifactValidation, result)
}

// Validation loads the stored validation result.
func (s *Store) Validation(ctx context.Context, sessionID string) (session.ValidationResult, error) {
	var result session.ValidationResult
	if err := s.Artifact(ctx, sessionID, ArtifactValidation, &result); err != nil {
		return session.ValidationResult{}, err
	}
	return result, nil
}

// SaveProgress persists the latest progress record for a session.
func (s *Store) SaveProgress(ctx context.Context, sessionID string, record session.ProgressRecord) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO progress (session_id, stage, message, percent, completed, error, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(session_id) DO UPDATE SET
             stage = excluded.stage, message = excluded.message, percent = excluded.percent,
             completed = excluded.completed, error = excluded.error, updated_at = excluded.updated_at`,
		sessionID,
		record.Stage,
		nullableString(record.Message),
		record.Percent,
		boolToInt(record.Completed),
		boolToInt(record.Error),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Progress loads the latest progress record, reporting ok=false when the
// session has not recorded progress yet.
func (s *Store) Progress(ctx context.Context, sessionID string) (session.ProgressRecord, bool, error) {
	var (
		record     session.ProgressRecord
		message    sql.NullString
		completed  int
		errFlag    int
		updatedRaw string
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT stage, message, percent, completed, error, updated_at FROM progress WHERE session_id = ?`,
		sessionID,
	).Scan(&record.Stage, &message, &record.Percent, &completed, &errFlag, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ProgressRecord{}, false, nil
	}
	if err != nil {
		return session.ProgressRecord{}, false, fmt.Errorf("load progress: %w", err)
	}
	record.Message = message.String
	record.Completed = completed != 0
	record.Error = errFlag != 0
	if updated, parseErr := parseTimeString(updatedRaw); parseErr == nil {
		record.UpdatedAt = updated
	}
	return record, true, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
