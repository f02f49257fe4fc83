package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/fallback"
	"dubflow/internal/logging"
	"dubflow/internal/progress"
	"dubflow/internal/providers"
	"dubflow/internal/services"
	"dubflow/internal/session"
	"dubflow/internal/stage"
	"dubflow/internal/store"
)

// Translator renders diarized segments into the target language, trying the
// configured backends in priority order until one succeeds.
type Translator struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	tracker  *progress.Tracker
	backends []providers.Translator
	limiters *providers.LimiterPool
}

// NewTranslator constructs the translation stage handler. Backends must
// already be ordered by fallback priority.
func NewTranslator(st *store.Store, cfg *config.Config, logger *slog.Logger, tracker *progress.Tracker, backends []providers.Translator, limiters *providers.LimiterPool) *Translator {
	if limiters == nil {
		limiters = providers.NewLimiterPool()
	}
	return &Translator{
		store:    st,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "translate"),
		tracker:  tracker,
		backends: backends,
		limiters: limiters,
	}
}

func (t *Translator) Prepare(ctx context.Context, sess *session.Session) error {
	segs, err := t.store.Segments(ctx, sess.ID, store.ArtifactDiarization)
	if err != nil {
		return services.Wrap(services.ErrPrecondition, "translate", "prepare", "no transcription artifact for session", err)
	}
	if len(segs) == 0 {
		return services.Wrap(services.ErrPrecondition, "translate", "prepare", "transcription artifact is empty", nil)
	}
	if sess.TargetLanguage == "" {
		return services.Wrap(services.ErrPrecondition, "translate", "prepare", "session has no target language", nil)
	}
	return nil
}

func (t *Translator) Execute(ctx context.Context, sess *session.Session) error {
	segs, err := t.store.Segments(ctx, sess.ID, store.ArtifactDiarization)
	if err != nil {
		return err
	}
	_ = t.tracker.Set(ctx, sess.ID, string(session.StageTranslating), "translating segments", 10)

	rpm := t.cfg.Translation.RequestsPerMinute
	methods := make([]fallback.Method[[]session.Segment], 0, len(t.backends))
	for _, backend := range t.backends {
		backend := backend
		methods = append(methods, fallback.Method[[]session.Segment]{
			ID: backend.Brand(),
			Invoke: func(ctx context.Context) ([]session.Segment, error) {
				if rpm > 0 {
					if err := t.limiters.Wait(ctx, backend.Brand(), rpm); err != nil {
						return nil, err
					}
				}
				return backend.Translate(ctx, segs, sess.SourceLanguage, sess.TargetLanguage)
			},
		})
	}

	result, err := fallback.Run(ctx, methods, fallback.Options{
		Op:             "translate segments",
		AttemptTimeout: stageAttemptTimeout(t.cfg),
		Logger:         t.logger,
	})
	if err != nil {
		_ = t.tracker.Fail(ctx, sess.ID, string(session.StageTranslating), "all translation backends failed")
		return err
	}
	translated := result.Value
	_ = t.tracker.Set(ctx, sess.ID, string(session.StageTranslating), "saving translation", 85)

	if err := t.store.SaveSegments(ctx, sess.ID, store.ArtifactTranslationRaw, translated); err != nil {
		return err
	}
	if err := t.store.SaveSegments(ctx, sess.ID, store.ArtifactTranslation, translated); err != nil {
		return err
	}

	t.logger.Info("translation complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldProvider, result.Winner),
		logging.Int("segments", len(translated)))
	_ = t.tracker.Complete(ctx, sess.ID, string(session.StageTranslating),
		fmt.Sprintf("translated by %s", result.Winner))
	return nil
}

func (t *Translator) HealthCheck(ctx context.Context) stage.Health {
	if len(t.backends) == 0 {
		return stage.Unhealthy("translate", "no translation backends configured")
	}
	return stage.Healthy("translate")
}

func stageAttemptTimeout(cfg *config.Config) time.Duration {
	if cfg.Workflow.StageTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.Workflow.StageTimeoutSeconds) * time.Second
}
