// Package pipeline coordinates the dubbing workflow: it owns stage
// transitions, per-session concurrency, and failure bookkeeping. Stage
// handlers do the work; the orchestrator decides when each may run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"dubflow/internal/config"
	"dubflow/internal/extract"
	"dubflow/internal/fileutil"
	langcode "dubflow/internal/language"
	"dubflow/internal/logging"
	"dubflow/internal/progress"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/stage"
	"dubflow/internal/store"
)

// Orchestrator advances dubbing sessions through the pipeline. At most one
// action runs per session at a time; concurrent requests for the same
// session fail fast with services.ErrBusy rather than queueing.
type Orchestrator struct {
	store     *store.Store
	cfg       *config.Config
	logger    *slog.Logger
	tracker   *progress.Tracker
	extractor *extract.Extractor
	handlers  map[session.Action]stage.Handler

	mu       sync.Mutex
	inflight map[string]session.Action
}

// NewOrchestrator wires the orchestrator with one handler per action.
// Missing handlers are permitted; advancing with one fails as a
// configuration error.
func NewOrchestrator(st *store.Store, cfg *config.Config, logger *slog.Logger, tracker *progress.Tracker, extractor *extract.Extractor, handlers map[session.Action]stage.Handler) *Orchestrator {
	return &Orchestrator{
		store:     st,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		tracker:   tracker,
		extractor: extractor,
		handlers:  handlers,
		inflight:  make(map[string]session.Action),
	}
}

// NewSessionFromFile registers a new session whose source audio is already
// on disk. The audio is copied into the workspace so the session stops
// depending on the caller keeping the original file in place.
func (o *Orchestrator) NewSessionFromFile(ctx context.Context, audioPath, sourceLang, targetLang string) (*session.Session, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new session", "source audio file not readable", err)
	}
	sess, err := o.createSession(ctx, sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	imported := filepath.Join(o.cfg.Paths.WorkspaceDir, sess.ID+"_source"+filepath.Ext(audioPath))
	if err := fileutil.CopyFileVerified(audioPath, imported); err != nil {
		err = services.Wrap(services.ErrValidation, "pipeline", "new session", "import source audio into workspace", err)
		sess.ErrorMessage = err.Error()
		_ = o.store.UpdateSession(ctx, sess)
		return nil, err
	}
	sess.AudioPath = imported
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// NewSessionFromURL registers a new session and extracts its source audio
// from a supported video URL.
func (o *Orchestrator) NewSessionFromURL(ctx context.Context, rawURL, sourceLang, targetLang string) (*session.Session, error) {
	if o.extractor == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new session", "no extractor configured", nil)
	}
	if _, err := extract.Classify(rawURL); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new session", "unsupported video URL", err)
	}
	sess, err := o.createSession(ctx, sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	audioPath, err := o.extractor.Extract(ctx, rawURL, sess.ID)
	if err != nil {
		// Leave the session behind in the input stage so the failure is
		// inspectable, but report it.
		sess.ErrorMessage = err.Error()
		_ = o.store.UpdateSession(ctx, sess)
		return nil, err
	}
	sess.AudioPath = audioPath
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (o *Orchestrator) createSession(ctx context.Context, sourceLang, targetLang string) (*session.Session, error) {
	source, err := normalizeLanguage(sourceLang, true)
	if err != nil {
		return nil, err
	}
	target, err := normalizeLanguage(targetLang, false)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	sess, err := o.store.CreateSession(ctx, id, source, target)
	if err != nil {
		return nil, err
	}
	o.logger.Info("session created",
		logging.String(logging.FieldSessionID, id),
		logging.String("source_language", source),
		logging.String("target_language", target))
	return sess, nil
}

// normalizeLanguage canonicalizes a BCP 47 tag. Word forms and ISO 639-2
// codes ("hindi", "hin") are accepted and mapped to their 2-letter tag
// first. The source language may be empty, meaning transcription should
// detect it.
func normalizeLanguage(tag string, allowEmpty bool) (string, error) {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		if allowEmpty {
			return "", nil
		}
		return "", services.Wrap(services.ErrValidation, "pipeline", "new session", "target language required", nil)
	}
	if mapped := langcode.ToISO2(trimmed); mapped != "" {
		trimmed = mapped
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "pipeline", "new session",
			fmt.Sprintf("invalid language tag %q", tag), err)
	}
	return parsed.String(), nil
}

// Session returns the current state of a session.
func (o *Orchestrator) Session(ctx context.Context, id string) (*session.Session, error) {
	sess, err := o.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "get session", fmt.Sprintf("unknown session %s", id), nil)
	}
	return sess, nil
}

// Sessions lists all sessions.
func (o *Orchestrator) Sessions(ctx context.Context) ([]*session.Session, error) {
	return o.store.ListSessions(ctx)
}

// Progress returns the latest progress record for a session.
func (o *Orchestrator) Progress(ctx context.Context, id string) (session.ProgressRecord, bool, error) {
	return o.tracker.Get(ctx, id)
}

// Advance runs one action against a session. The session must currently sit
// in the action's expected source stage; any other stage is a precondition
// failure. A concurrent advance on the same session fails with
// services.ErrBusy.
func (o *Orchestrator) Advance(ctx context.Context, id string, action session.Action) error {
	transition, ok := session.TransitionFor(action)
	if !ok {
		return services.Wrap(services.ErrValidation, "pipeline", "advance", fmt.Sprintf("unknown action %q", action), nil)
	}
	handler, ok := o.handlers[action]
	if !ok {
		return services.Wrap(services.ErrConfiguration, "pipeline", "advance", fmt.Sprintf("no handler for action %s", action), nil)
	}

	if err := o.acquire(id, action); err != nil {
		return err
	}
	defer o.release(id)

	sess, err := o.Session(ctx, id)
	if err != nil {
		return err
	}
	if sess.Stage != transition.From {
		return services.Wrap(services.ErrPrecondition, "pipeline", "advance",
			fmt.Sprintf("action %s requires stage %s, session is %s", action, transition.From, sess.Stage), nil)
	}

	ctx = services.WithSessionID(ctx, id)
	ctx = services.WithStage(ctx, string(transition.Processing))
	ctx = services.WithRequestID(ctx, uuid.NewString())

	if err := handler.Prepare(ctx, sess); err != nil {
		return err
	}

	sess.Stage = transition.Processing
	sess.ErrorMessage = ""
	sess.FailedAction = ""
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return err
	}

	runCtx := ctx
	cancel := func() {}
	if timeout := time.Duration(o.cfg.Workflow.StageTimeoutSeconds) * time.Second; timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	execErr := handler.Execute(runCtx, sess)
	cancel()

	if execErr != nil {
		sess.Stage = session.StageError
		sess.ErrorMessage = execErr.Error()
		// Only transient causes are worth re-running; configuration and
		// validation failures would fail identically, so retry refuses them.
		sess.FailedAction = ""
		if services.Retryable(execErr) {
			sess.FailedAction = action
		}
		if err := o.store.UpdateSession(ctx, sess); err != nil {
			o.logger.Error("failed to record session error",
				logging.String(logging.FieldSessionID, id), logging.Error(err))
		}
		_ = o.tracker.Fail(ctx, id, string(transition.Processing), execErr.Error())
		o.logger.Error("stage failed",
			logging.String(logging.FieldSessionID, id),
			logging.String(logging.FieldStage, string(transition.Processing)),
			logging.Error(execErr))
		return execErr
	}

	sess.Stage = transition.Done
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	o.logger.Info("stage complete",
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldStage, string(transition.Done)))
	return nil
}

// Recover resets sessions left in a processing stage by an interrupted
// process back to the stage their action started from. Runs before any
// command touches the store; without it a crash mid-stage strands the
// session, since no transition accepts a processing stage as its source.
func (o *Orchestrator) Recover(ctx context.Context) (int64, error) {
	updated, err := o.store.ResetStuckSessions(ctx)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		o.logger.Warn("reset sessions stranded mid-stage by an interrupted run",
			logging.Int64("sessions", updated))
	}
	return updated, nil
}

// Run advances a session through every remaining action in order, stopping
// at the first failure.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	for _, action := range session.ActionOrder() {
		sess, err := o.Session(ctx, id)
		if err != nil {
			return err
		}
		if session.IsTerminal(sess.Stage) {
			return nil
		}
		if session.IsProcessing(sess.Stage) {
			return services.Wrap(services.ErrBusy, "pipeline", "run",
				fmt.Sprintf("stage %s is already in flight for this session", sess.Stage), nil)
		}
		transition, _ := session.TransitionFor(action)
		if sess.Stage != transition.From {
			continue
		}
		if err := o.Advance(ctx, id, action); err != nil {
			return err
		}
	}
	return nil
}

// Retry re-runs the action that put a session into the error stage.
func (o *Orchestrator) Retry(ctx context.Context, id string) error {
	sess, err := o.Session(ctx, id)
	if err != nil {
		return err
	}
	if sess.Stage != session.StageError {
		return services.Wrap(services.ErrPrecondition, "pipeline", "retry",
			fmt.Sprintf("session is in stage %s, not error", sess.Stage), nil)
	}
	action := sess.FailedAction
	if action == "" {
		return services.Wrap(services.ErrPrecondition, "pipeline", "retry", "session's failure is not retryable", nil)
	}
	transition, ok := session.TransitionFor(action)
	if !ok {
		return services.Wrap(services.ErrValidation, "pipeline", "retry", fmt.Sprintf("unknown failed action %q", action), nil)
	}

	sess.Stage = transition.From
	sess.ErrorMessage = ""
	sess.FailedAction = ""
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	return o.Advance(ctx, id, action)
}

// Reset returns a session to the input stage, discarding all artifacts and
// progress. The source audio file is kept.
func (o *Orchestrator) Reset(ctx context.Context, id string) error {
	if err := o.acquire(id, ""); err != nil {
		return err
	}
	defer o.release(id)

	if err := o.store.ResetSession(ctx, id); err != nil {
		return err
	}
	o.tracker.Forget(id)
	o.logger.Info("session reset", logging.String(logging.FieldSessionID, id))
	return nil
}

// Health reports readiness of every configured stage handler.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(o.handlers))
	for _, action := range session.ActionOrder() {
		handler, ok := o.handlers[action]
		if !ok {
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}

func (o *Orchestrator) acquire(id string, action session.Action) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, busy := o.inflight[id]; busy {
		detail := "another operation is in flight for this session"
		if current != "" {
			detail = fmt.Sprintf("action %s is in flight for this session", current)
		}
		return services.Wrap(services.ErrBusy, "pipeline", "advance", detail, nil)
	}
	o.inflight[id] = action
	return nil
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}
