package segments

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/store"
)

// Update carries a partial edit for one segment. Nil fields are left
// untouched.
type Update struct {
	Speaker        *string `json:"speaker,omitempty"`
	Text           *string `json:"text,omitempty"`
	TranslatedText *string `json:"translated_text,omitempty"`
}

// Outcome classifies an edit batch result.
type Outcome string

const (
	// OutcomeApplied means every entry in the batch was applied.
	OutcomeApplied Outcome = "applied"
	// OutcomePartial means some entries referenced unknown segment IDs;
	// the valid entries were still applied.
	OutcomePartial Outcome = "partial"
	// OutcomeRejected means the batch as a whole was refused, e.g. the
	// session or artifact does not exist. Nothing was applied.
	OutcomeRejected Outcome = "rejected"
)

// Result reports what an edit batch did.
type Result struct {
	Outcome Outcome
	Applied int
	// Errors maps each rejected segment ID to the reason.
	Errors map[int]string
}

// Editor applies batches of per-segment edits atomically against the stored
// segment collection for one session.
type Editor struct {
	store  *store.Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEditor constructs a segment editor backed by the given store.
func NewEditor(st *store.Store, logger *slog.Logger) *Editor {
	return &Editor{
		store:  st,
		logger: logging.NewComponentLogger(logger, "segment-editor"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (e *Editor) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sessionID] = lock
	}
	return lock
}

// Apply applies a batch of edits to the segment collection of the given kind.
// Unknown segment IDs become per-entry errors without aborting the rest of
// the batch; an unknown session or missing collection rejects the batch
// entirely. Two concurrent batches for the same session are serialized, and
// the updated collection is persisted as one unit.
func (e *Editor) Apply(ctx context.Context, sessionID string, kind store.ArtifactKind, updates map[int]Update) (Result, error) {
	rejected := Result{Outcome: OutcomeRejected}

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return rejected, err
	}
	if sess == nil {
		return rejected, services.Wrap(services.ErrNotFound, "", "edit segments", fmt.Sprintf("session %s not found", sessionID), nil)
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	segs, err := e.store.Segments(ctx, sessionID, kind)
	if err != nil {
		return rejected, services.Wrap(services.ErrNotFound, "", "edit segments", fmt.Sprintf("no %s segments for session %s", kind, sessionID), err)
	}

	byID := make(map[int]int, len(segs))
	for i, seg := range segs {
		byID[seg.ID] = i
	}

	result := Result{Outcome: OutcomeApplied, Errors: make(map[int]string)}
	for segID, update := range updates {
		idx, ok := byID[segID]
		if !ok {
			result.Errors[segID] = "unknown segment id"
			continue
		}
		seg := &segs[idx]
		if update.Speaker != nil {
			seg.Speaker = CanonicalSpeaker(*update.Speaker)
		}
		if update.Text != nil {
			seg.Text = *update.Text
		}
		if update.TranslatedText != nil {
			seg.TranslatedText = *update.TranslatedText
		}
		result.Applied++
	}

	if result.Applied > 0 {
		if err := e.store.SaveSegments(ctx, sessionID, kind, segs); err != nil {
			return Result{Outcome: OutcomeRejected}, err
		}
	}

	if len(result.Errors) > 0 {
		result.Outcome = OutcomePartial
	}

	e.logger.Info("edit batch applied",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("kind", string(kind)),
		logging.Int("applied", result.Applied),
		logging.Int("rejected", len(result.Errors)))
	return result, nil
}
