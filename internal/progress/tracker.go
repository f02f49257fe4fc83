package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dubflow/internal/logging"
	"dubflow/internal/session"
	"dubflow/internal/store"
)

// Tracker maintains the latest progress record per session. Records are
// swapped whole under a lock so a polling reader never observes a
// half-updated record, and written through to the store so progress survives
// a process restart.
type Tracker struct {
	store  *store.Store
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]session.ProgressRecord
}

// NewTracker constructs a tracker backed by the given store.
func NewTracker(st *store.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:   st,
		logger:  logging.NewComponentLogger(logger, "progress"),
		records: make(map[string]session.ProgressRecord),
	}
}

// Set records progress for a stage. Percent is clamped to [0,100]. Within a
// stage the observed percentage never decreases; a lower value keeps the
// previous one. A different stage name resets the record. Once a record is
// terminal it is frozen until the next stage transition.
func (t *Tracker) Set(ctx context.Context, sessionID, stage, message string, percent float64) error {
	return t.update(ctx, sessionID, stage, message, percent, false, false)
}

// Complete marks the stage's record terminal at 100%.
func (t *Tracker) Complete(ctx context.Context, sessionID, stage, message string) error {
	return t.update(ctx, sessionID, stage, message, 100, true, false)
}

// Fail marks the stage's record terminal with the error flag set.
func (t *Tracker) Fail(ctx context.Context, sessionID, stage, message string) error {
	return t.update(ctx, sessionID, stage, message, 0, false, true)
}

func (t *Tracker) update(ctx context.Context, sessionID, stage, message string, percent float64, completed, failed bool) error {
	percent = clamp(percent)

	t.mu.Lock()
	previous, exists := t.records[sessionID]
	sameStage := exists && previous.Stage == stage
	if sameStage && previous.Terminal() && !completed && !failed {
		// Frozen until the next stage transition.
		t.mu.Unlock()
		return nil
	}
	if sameStage && percent < previous.Percent && !failed {
		percent = previous.Percent
	}
	record := session.ProgressRecord{
		Stage:     stage,
		Message:   message,
		Percent:   percent,
		Completed: completed,
		Error:     failed,
		UpdatedAt: time.Now().UTC(),
	}
	t.records[sessionID] = record
	t.mu.Unlock()

	if err := t.store.SaveProgress(ctx, sessionID, record); err != nil {
		t.logger.Warn("progress write-through failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
		return err
	}
	return nil
}

// Get returns the latest record for a session. The second return is false
// when the session has not reported progress yet; callers render that as a
// "no progress yet" sentinel.
func (t *Tracker) Get(ctx context.Context, sessionID string) (session.ProgressRecord, bool, error) {
	t.mu.RLock()
	record, ok := t.records[sessionID]
	t.mu.RUnlock()
	if ok {
		return record, true, nil
	}
	// Fall back to persisted state so progress survives restarts.
	record, ok, err := t.store.Progress(ctx, sessionID)
	if err != nil || !ok {
		return session.ProgressRecord{}, false, err
	}
	t.mu.Lock()
	if _, raced := t.records[sessionID]; !raced {
		t.records[sessionID] = record
	}
	t.mu.Unlock()
	return record, true, nil
}

// Forget drops the in-memory record. Session reset deletes the persisted
// row separately, so the next Get reports no progress.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	delete(t.records, sessionID)
	t.mu.Unlock()
}

func clamp(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
