package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dubflow/internal/session"
)

const sessionColumns = "id, stage, source_language, target_language, audio_path, synthesis_path, error_message, failed_action, created_at, updated_at"

// CreateSession inserts a new session in the input stage.
func (s *Store) CreateSession(ctx context.Context, id, sourceLang, targetLang string) (*session.Session, error) {
	if id == "" {
		return nil, errors.New("session id must not be empty")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (id, stage, source_language, target_language, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		session.StageInput,
		nullableString(sourceLang),
		nullableString(targetLang),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession fetches a session by identifier, returning nil when absent.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// UpdateSession persists changes to an existing session.
func (s *Store) UpdateSession(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE sessions
         SET stage = ?, source_language = ?, target_language = ?, audio_path = ?,
             synthesis_path = ?, error_message = ?, failed_action = ?, updated_at = ?
         WHERE id = ?`,
		sess.Stage,
		nullableString(sess.SourceLanguage),
		nullableString(sess.TargetLanguage),
		nullableString(sess.AudioPath),
		nullableString(sess.SynthesisPath),
		nullableString(sess.ErrorMessage),
		nullableString(string(sess.FailedAction)),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.ID,
	); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// ListSessions returns all sessions ordered by creation time.
func (s *Store) ListSessions(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ResetSession returns a session to the input stage and discards every
// artifact and progress record it owns, as one transaction.
func (s *Store) ResetSession(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reset tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions
             SET stage = ?, audio_path = NULL, synthesis_path = NULL,
                 error_message = NULL, failed_action = NULL, updated_at = ?
             WHERE id = ?`,
			session.StageInput, now, id,
		)
		if err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reset rows affected: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("discard artifacts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("discard progress: %w", err)
		}
		return tx.Commit()
	})
}

// ResetStuckSessions returns sessions stranded in a processing stage by an
// interrupted run back to the stage their action started from, so the next
// advance can re-run the stage instead of wedging. Progress records for the
// affected sessions are rewound to zero. Returns the number of sessions reset.
func (s *Store) ResetStuckSessions(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin stuck-reset tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`UPDATE progress
             SET percent = 0, message = 'reset after interrupted run',
                 completed = 0, error = 0, updated_at = ?
             WHERE session_id IN (SELECT id FROM sessions WHERE stage IN (?, ?, ?, ?))`,
			now,
			session.StageTranscribing, session.StageTranslating,
			session.StageSynthesizing, session.StageValidating,
		); err != nil {
			return fmt.Errorf("rewind stuck progress: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE sessions
             SET stage = CASE stage
                 WHEN ? THEN ?
                 WHEN ? THEN ?
                 WHEN ? THEN ?
                 WHEN ? THEN ?
                 ELSE stage
             END,
                 updated_at = ?
             WHERE stage IN (?, ?, ?, ?)`,
			session.StageTranscribing, session.StageInput,
			session.StageTranslating, session.StageTranscribed,
			session.StageSynthesizing, session.StageTranslated,
			session.StageValidating, session.StageSynthesized,
			now,
			session.StageTranscribing, session.StageTranslating,
			session.StageSynthesizing, session.StageValidating,
		)
		if err != nil {
			return fmt.Errorf("reset stuck sessions: %w", err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("stuck-reset rows affected: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// DeleteSession removes a session and, via cascade, its artifacts and progress.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*session.Session, error) {
	var (
		id            string
		stageStr      string
		sourceLang    sql.NullString
		targetLang    sql.NullString
		audioPath     sql.NullString
		synthesisPath sql.NullString
		errorMessage  sql.NullString
		failedAction  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&stageStr,
		&sourceLang,
		&targetLang,
		&audioPath,
		&synthesisPath,
		&errorMessage,
		&failedAction,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:             id,
		Stage:          session.Stage(stageStr),
		SourceLanguage: sourceLang.String,
		TargetLanguage: targetLang.String,
		AudioPath:      audioPath.String,
		SynthesisPath:  synthesisPath.String,
		ErrorMessage:   errorMessage.String,
		FailedAction:   session.Action(failedAction.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
